package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/utils"
	"chatrelay-backend/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	cfg        config.OpenAIConfig
	httpClient *http.Client
}

func newOpenAIClient(cfg config.OpenAIConfig) *openAIClient {
	return &openAIClient{
		cfg:        cfg,
		httpClient: utils.NewHTTPClient(cfg.Timeout),
	}
}

// Open 发起流式请求并把响应体交给 SSE 解码器，解码逐事件进行
func (c *openAIClient) Open(ctx context.Context, req *ConversationRequest) (Session, error) {
	payload := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: toOpenAIMessages(req),
		Stream:   true,
	}
	if tools := toOpenAITools(req.UserMessage.ToolSpecs); len(tools) > 0 {
		payload.Tools = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("encode request: %v", err)}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, classifyHTTPError(resp.StatusCode, data)
	}

	return &sseSession{
		body:    resp.Body,
		decoder: NewSSEDecoder(),
		read:    make([]byte, 4096),
	}, nil
}

// classifyHTTPError 把非 2xx 响应映射到错误分级：
// 429 归配额；校验类"输入过长"归上下文超限；其余归传输失败
func classifyHTTPError(status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return ErrQuotaExceeded
	}

	var errBody struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil {
		if errBody.Error.Code == "context_length_exceeded" ||
			strings.Contains(errBody.Error.Message, "Input is too long.") {
			return ErrContextWindowExceeded
		}
		if errBody.Error.Message != "" {
			return &TransportError{Err: fmt.Errorf("backend returned status %d: %s", status, errBody.Error.Message)}
		}
	}
	return &TransportError{Err: fmt.Errorf("backend returned status %d", status)}
}

// sseSession 持有响应体与解码器，Next 按需读取底层字节直到解出事件
type sseSession struct {
	body    io.ReadCloser
	decoder *SSEDecoder
	read    []byte
	pending []Event
	done    bool
}

func (s *sseSession) Next(ctx context.Context) (Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return Event{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			s.done = true
			return Event{}, &TransportError{Err: err}
		}

		n, err := s.body.Read(s.read)
		if n > 0 {
			s.pending = append(s.pending, s.decoder.Feed(s.read[:n])...)
		}
		if err == io.EOF {
			s.pending = append(s.pending, s.decoder.Finish()...)
			s.done = true
			continue
		}
		if err != nil {
			s.done = true
			return Event{}, &TransportError{Err: err}
		}
	}
}

func (s *sseSession) Close() error {
	return s.body.Close()
}

func toOpenAIMessages(req *ConversationRequest) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage

	for _, m := range req.History {
		switch m.Role {
		case RoleUser:
			appendToolResults(&msgs, m.ToolResults)
			if m.Content != "" {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: m.Content,
				})
			}
		case RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tu := range m.ToolUses {
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   tu.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tu.Name,
						Arguments: string(tu.Input),
					},
				})
			}
			msgs = append(msgs, out)
		default:
			logger.Warnf("skip unsupported history role: %s", m.Role)
		}
	}

	appendToolResults(&msgs, req.UserMessage.ToolResults)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage.Content,
	})
	return msgs
}

// appendToolResults 工具输出映射为 role=tool 消息，文本块与结构化块拼接为文本
func appendToolResults(msgs *[]openai.ChatCompletionMessage, results []ToolResult) {
	for _, tr := range results {
		var parts []string
		for _, block := range tr.Content {
			if block.Text != "" {
				parts = append(parts, block.Text)
			} else if len(block.JSON) > 0 {
				parts = append(parts, string(block.JSON))
			}
		}
		*msgs = append(*msgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: tr.ToolUseID,
			Content:    strings.Join(parts, "\n"),
		})
	}
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		fn := &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if len(spec.InputSchema) > 0 {
			fn.Parameters = spec.InputSchema
		}
		tools = append(tools, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: fn,
		})
	}
	return tools
}
