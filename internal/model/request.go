package model

import (
	"encoding/json"
	"fmt"
)

// ChatCompletionRequest OpenAI 兼容的入站请求体
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent 兼容两种 content 形态：纯字符串，或类型化分段数组
type MessageContent struct {
	Text  string
	Parts []ContentPart
	// 区分空字符串与分段形态
	IsParts bool
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		m.Text = text
		m.Parts = nil
		m.IsParts = false
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		m.Parts = parts
		m.IsParts = true
		return nil
	}

	return fmt.Errorf("content must be a string or an array of content parts")
}

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.IsParts {
		return json.Marshal(m.Parts)
	}
	return json.Marshal(m.Text)
}

// PlainText 归约为纯文本：仅保留 text 分段，按换行拼接，忽略图片等其他分段
func (m MessageContent) PlainText() string {
	if !m.IsParts {
		return m.Text
	}

	var texts []string
	for _, part := range m.Parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}

	result := ""
	for i, t := range texts {
		if i > 0 {
			result += "\n"
		}
		result += t
	}
	return result
}
