package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"chatrelay-backend/internal/backend"
	"chatrelay-backend/internal/model"
	"chatrelay-backend/internal/service"
	"chatrelay-backend/internal/utils"
	"chatrelay-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// ChatCompletions POST /v1/chat/completions 入口，校验通过后才会触达后端
func (h *ChatHandler) ChatCompletions(c *gin.Context) {
	var req model.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error(), "invalid_request", "")
		return
	}

	conv, ok := h.buildConversation(c, &req)
	if !ok {
		return
	}

	logger.Infof("收到补全请求 - 消息数: %d, 流式: %v", len(req.Messages), req.Stream)

	if req.Stream {
		h.streamCompletion(c, conv)
	} else {
		h.completion(c, conv)
	}
}

// buildConversation 校验请求并映射为规范化会话请求。
// 校验失败时已写出错误响应并返回 ok=false，不会打开任何后端会话
func (h *ChatHandler) buildConversation(c *gin.Context, req *model.ChatCompletionRequest) (*backend.ConversationRequest, bool) {
	if len(req.Messages) == 0 {
		writeError(c, http.StatusBadRequest, "No messages provided", "invalid_request", "")
		return nil, false
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		writeError(c, http.StatusBadRequest, "Last message must be from user", "invalid_request", "")
		return nil, false
	}

	var history []backend.Message
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		switch msg.Role {
		case "user":
			history = append(history, backend.Message{
				Role:    backend.RoleUser,
				Content: msg.Content.PlainText(),
			})
		case "assistant":
			history = append(history, backend.Message{
				Role:    backend.RoleAssistant,
				Content: msg.Content.PlainText(),
			})
		default:
			// 其他角色丢弃并告警，不视为错误
			logger.Warnf("不支持的消息角色: %s", msg.Role)
		}
	}

	return &backend.ConversationRequest{
		UserMessage: backend.UserMessage{Content: last.Content.PlainText()},
		History:     history,
	}, true
}

func (h *ChatHandler) completion(c *gin.Context, conv *backend.ConversationRequest) {
	content, err := h.chatService.Complete(c.Request.Context(), conv)
	if err != nil {
		writeBackendError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   h.chatService.ModelName(),
		Choices: []model.Choice{
			{
				Index: 0,
				Message: model.ResponseMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		// 后端不提供 token 统计，恒为 0
		Usage: model.Usage{},
	})
}

func (h *ChatHandler) streamCompletion(c *gin.Context, conv *backend.ConversationRequest) {
	ctx := c.Request.Context()
	respChan, errChan := h.chatService.StreamChat(ctx, conv)

	id := newCompletionID()
	created := time.Now().Unix()
	modelName := h.chatService.ModelName()

	var sse *utils.SSEWriter
	roleSent := false

	writeChunk := func(delta model.ChunkDelta, finishReason *string) error {
		if sse == nil {
			sse = utils.NewSSEWriter(c.Writer)
		}
		return sse.WriteJSON(model.ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelName,
			Choices: []model.ChunkChoice{
				{Index: 0, Delta: delta, FinishReason: finishReason},
			},
		})
	}

	finish := func() {
		if !roleSent {
			// 流不允许以零内容结束，补一个携带 role 的兜底块
			reply := service.DefaultEmptyReply
			if err := writeChunk(model.ChunkDelta{Role: "assistant", Content: &reply}, nil); err != nil {
				logger.Errorf("写入兜底块失败: %v", err)
				return
			}
			roleSent = true
		}
		stop := "stop"
		if err := writeChunk(model.ChunkDelta{}, &stop); err != nil {
			logger.Errorf("写入终止块失败: %v", err)
			return
		}
		sse.Done()
	}

	for {
		select {
		case ev, ok := <-respChan:
			if !ok {
				// 通道关闭可能晚于错误投递，先看有没有挂起的错误
				select {
				case err := <-errChan:
					h.streamError(c, sse != nil, err)
				default:
					finish()
				}
				return
			}

			switch ev.Type {
			case backend.EventAssistantText, backend.EventCodeText:
				text := ev.Text
				delta := model.ChunkDelta{Content: &text}
				if !roleSent {
					delta.Role = "assistant"
					roleSent = true
				}
				if err := writeChunk(delta, nil); err != nil {
					logger.Errorf("写入内容块失败: %v", err)
					return
				}
			case backend.EventToolUse, backend.EventMetadata, backend.EventUnknown:
				logger.Debugf("skip non-text event: %s", ev.Type)
			}

		case err := <-errChan:
			h.streamError(c, sse != nil, err)
			return

		case <-ctx.Done():
			return
		}
	}
}

// streamError 流式交互中途失败：尚未写出任何帧时回退为 JSON 错误响应；
// 已经开流则中断连接，不再补发终止块与哨兵，已冲刷的块维持已送达状态
func (h *ChatHandler) streamError(c *gin.Context, started bool, err error) {
	if !started {
		writeBackendError(c, err)
		return
	}
	logger.Errorf("流式输出中断: %v", err)
	c.Abort()
}

func (h *ChatHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, model.ModelsResponse{
		Object: "list",
		Data: []model.ModelInfo{
			{
				ID:      h.chatService.ModelName(),
				Object:  "model",
				Created: time.Now().Unix(),
				OwnedBy: h.chatService.OwnedBy(),
			},
		},
	})
}

func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "chatrelay-gateway",
		"uptime_seconds": int64(h.chatService.Uptime().Seconds()),
		"exchanges":      h.chatService.ExchangeCount(),
	})
}

func newCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func writeError(c *gin.Context, status int, message, errType, code string) {
	c.JSON(status, model.ErrorResponse{
		Error: model.ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	})
}

// writeBackendError 错误分级到对外 HTTP 状态与错误体的映射，
// 配额、上下文超限与一般后端错误对调用方保持可区分
func writeBackendError(c *gin.Context, err error) {
	var invalidState *backend.InvalidStateError

	switch {
	case errors.Is(err, backend.ErrContextWindowExceeded):
		writeError(c, http.StatusBadRequest, "Input is too long.", "invalid_request_error", "context_length_exceeded")
	case errors.Is(err, backend.ErrQuotaExceeded):
		writeError(c, http.StatusInternalServerError, "Quota has reached its limit", "api_error", "quota_exceeded")
	case errors.As(err, &invalidState):
		writeError(c, http.StatusBadRequest, "Invalid state: "+invalidState.Reason+" - "+invalidState.Message, "invalid_state", "")
	default:
		logger.Errorf("后端调用失败: %v", err)
		writeError(c, http.StatusInternalServerError, "Backend error", "api_error", "")
	}
}
