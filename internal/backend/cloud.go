package backend

import (
	"context"
	"fmt"
	"io"
	"strings"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/utils"
	"chatrelay-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// einoClient 双向流式云后端的统一实现，具体模型由构造函数决定
type einoClient struct {
	chatModel einoModel.ChatModel
	family    string
}

func newDoubaoClient(ctx context.Context, cfg config.DoubaoConfig) (*einoClient, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create doubao model: %w", err)
	}
	return &einoClient{chatModel: chatModel, family: "doubao"}, nil
}

func newQwenClient(ctx context.Context, cfg config.QwenConfig) (*einoClient, error) {
	qwenCfg := &qwen.ChatModelConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		HTTPClient: utils.NewHTTPClient(cfg.Timeout),
	}
	if cfg.MaxTokens > 0 {
		qwenCfg.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		qwenCfg.Temperature = &cfg.Temperature
	}
	if cfg.TopP > 0 {
		qwenCfg.TopP = &cfg.TopP
	}

	chatModel, err := qwen.NewChatModel(ctx, qwenCfg)
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}
	return &einoClient{chatModel: chatModel, family: "qwen"}, nil
}

// Open 建立云端流式会话。调用方（服务层的配置句柄）串行化 Open，
// 因此此处的工具绑定不会与其他 Open 并发
func (c *einoClient) Open(ctx context.Context, req *ConversationRequest) (Session, error) {
	if specs := req.UserMessage.ToolSpecs; len(specs) > 0 {
		if err := c.bindTools(specs); err != nil {
			logger.Warnf("bind tools to %s model failed: %v", c.family, err)
		}
	}

	reader, err := c.chatModel.Stream(ctx, toEinoMessages(req))
	if err != nil {
		return nil, classifyCloudError(err)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	return &einoSession{
		reader: reader,
		// 云后端先给出一条会话元数据，再进入内容流
		pending: []Event{NewMetadata(conversationID, uuid.NewString())},
	}, nil
}

func (c *einoClient) bindTools(specs []ToolSpec) error {
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, spec := range specs {
		infos = append(infos, &schema.ToolInfo{
			Name: spec.Name,
			Desc: spec.Description,
		})
	}
	return c.chatModel.BindTools(infos)
}

// einoSession 包装 eino 的 StreamReader，把增量消息投影为规范化事件
type einoSession struct {
	reader  *schema.StreamReader[*schema.Message]
	calls   toolCallTracker
	pending []Event
	done    bool
}

func (s *einoSession) Next(ctx context.Context) (Event, error) {
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

		msg, err := s.reader.Recv()
		if err == io.EOF {
			s.done = true
			return Event{}, io.EOF
		}
		if err != nil {
			s.done = true
			return Event{}, classifyCloudError(err)
		}

		s.pending = append(s.pending, s.eventsFromMessage(msg)...)
	}
}

func (s *einoSession) Close() error {
	s.reader.Close()
	return nil
}

func (s *einoSession) eventsFromMessage(msg *schema.Message) []Event {
	var events []Event

	if msg.Content != "" {
		events = append(events, AssistantText(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		events = append(events, s.calls.observe(idx, tc.ID, tc.Function.Name, tc.Function.Arguments)...)
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason == "tool_calls" {
		events = append(events, s.calls.finishAll()...)
	}
	return events
}

func toEinoMessages(req *ConversationRequest) []*schema.Message {
	var msgs []*schema.Message

	for _, m := range req.History {
		switch m.Role {
		case RoleUser:
			appendEinoToolResults(&msgs, m.ToolResults)
			if m.Content != "" {
				msgs = append(msgs, &schema.Message{Role: schema.User, Content: m.Content})
			}
		case RoleAssistant:
			out := &schema.Message{Role: schema.Assistant, Content: m.Content}
			for _, tu := range m.ToolUses {
				out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
					ID: tu.ID,
					Function: schema.FunctionCall{
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

	appendEinoToolResults(&msgs, req.UserMessage.ToolResults)
	msgs = append(msgs, &schema.Message{Role: schema.User, Content: req.UserMessage.Content})
	return msgs
}

func appendEinoToolResults(msgs *[]*schema.Message, results []ToolResult) {
	for _, tr := range results {
		var parts []string
		for _, block := range tr.Content {
			if block.Text != "" {
				parts = append(parts, block.Text)
			} else if len(block.JSON) > 0 {
				parts = append(parts, string(block.JSON))
			}
		}
		*msgs = append(*msgs, &schema.Message{
			Role:       schema.Tool,
			ToolCallID: tr.ToolUseID,
			Content:    strings.Join(parts, "\n"),
		})
	}
}
