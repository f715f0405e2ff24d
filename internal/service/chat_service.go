package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"chatrelay-backend/internal/backend"
	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/model"
	"chatrelay-backend/internal/storage"
	"chatrelay-backend/pkg/logger"

	"github.com/google/uuid"
)

// DefaultEmptyReply 后端返回空结果时的兜底回复
const DefaultEmptyReply = "I apologize, but I wasn't able to generate a response. Please try again."

// ChatService 持有后端会话工厂与网关配置。
// 互斥锁只在读取配置或打开会话的短暂窗口内持有，绝不跨越流式排空，
// 否则一个慢客户端会饿死所有并发连接
type ChatService struct {
	mu        sync.Mutex
	opener    backend.Opener
	modelName string
	apiKey    string
	ownedBy   string

	store     storage.Storage
	startedAt time.Time
}

func NewChatService(cfg *config.Config, opener backend.Opener, store storage.Storage) *ChatService {
	return &ChatService{
		opener:    opener,
		modelName: cfg.Gateway.ModelName,
		apiKey:    cfg.Gateway.APIKey,
		ownedBy:   cfg.Gateway.OwnedBy,
		store:     store,
		startedAt: time.Now(),
	}
}

func (s *ChatService) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelName
}

func (s *ChatService) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

func (s *ChatService) OwnedBy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedBy
}

func (s *ChatService) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

func (s *ChatService) ExchangeCount() int {
	count, err := s.store.Count()
	if err != nil {
		logger.Errorf("count exchanges: %v", err)
		return 0
	}
	return count
}

func (s *ChatService) openSession(ctx context.Context, conv *backend.ConversationRequest) (backend.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opener.Open(ctx, conv)
}

// Complete 非流式：完整排空会话，按产出顺序拼接全部文本事件
func (s *ChatService) Complete(ctx context.Context, conv *backend.ConversationRequest) (string, error) {
	start := time.Now()

	session, err := s.openSession(ctx, conv)
	if err != nil {
		return "", err
	}
	defer session.Close()

	var sb strings.Builder
	for {
		ev, err := session.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch ev.Type {
		case backend.EventAssistantText, backend.EventCodeText:
			sb.WriteString(ev.Text)
		case backend.EventInvalidState:
			// InvalidState 之后流即终止，整次交互按失败处理
			return "", &backend.InvalidStateError{Reason: ev.Invalid.Reason, Message: ev.Invalid.Message}
		case backend.EventToolUse, backend.EventMetadata, backend.EventUnknown:
			logger.Debugf("skip non-text event: %s", ev.Type)
		}
	}

	content := sb.String()
	if content == "" {
		logger.Warn("backend produced no content, using default reply")
		content = DefaultEmptyReply
	}

	s.recordExchange(conv, len(content), false, time.Since(start))
	return content, nil
}

// StreamChat 流式：后台排空会话并把事件推入通道。
// 调用方的 ctx 取消（客户端断开）时立即放弃会话，释放其传输资源
func (s *ChatService) StreamChat(ctx context.Context, conv *backend.ConversationRequest) (<-chan backend.Event, <-chan error) {
	respChan := make(chan backend.Event, 16)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		start := time.Now()

		session, err := s.openSession(ctx, conv)
		if err != nil {
			errChan <- err
			return
		}
		defer session.Close()

		replyChars := 0
		for {
			ev, err := session.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				errChan <- err
				return
			}

			if ev.Type == backend.EventInvalidState {
				errChan <- &backend.InvalidStateError{Reason: ev.Invalid.Reason, Message: ev.Invalid.Message}
				return
			}

			select {
			case respChan <- ev:
				if ev.IsText() {
					replyChars += len(ev.Text)
				}
			case <-ctx.Done():
				logger.Infof("客户端断开，放弃后端会话")
				return
			}
		}

		s.recordExchange(conv, replyChars, true, time.Since(start))
	}()

	return respChan, errChan
}

func (s *ChatService) recordExchange(conv *backend.ConversationRequest, replyChars int, stream bool, elapsed time.Duration) {
	exchange := &model.Exchange{
		ID:             uuid.NewString(),
		Model:          s.ModelName(),
		Stream:         stream,
		PromptMessages: len(conv.History) + 1,
		ReplyChars:     replyChars,
		DurationMs:     elapsed.Milliseconds(),
		CreatedAt:      time.Now(),
	}

	if err := s.store.SaveExchange(exchange); err != nil {
		logger.Errorf("save exchange record: %v", err)
	}
}
