package backend

import (
	"context"
	"fmt"

	"chatrelay-backend/internal/config"
)

// Session 单次交互的后端会话：逐个拉取规范化事件，结束返回 io.EOF。
// 会话不跨请求复用，排空或出错后即丢弃；Close 释放其持有的传输资源
type Session interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// Opener 会话工厂，每个请求 Open 一个独立会话
type Opener interface {
	Open(ctx context.Context, req *ConversationRequest) (Session, error)
}

// NewClient 按配置选择后端家族，进程生命周期内只选择一次
func NewClient(ctx context.Context, cfg *config.Config) (Opener, error) {
	switch cfg.Backend.Provider {
	case "doubao":
		return newDoubaoClient(ctx, cfg.Doubao)
	case "qwen":
		return newQwenClient(ctx, cfg.Qwen)
	case "openai":
		return newOpenAIClient(cfg.OpenAI), nil
	case "mock":
		return NewMockClient(nil), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", cfg.Backend.Provider)
	}
}
