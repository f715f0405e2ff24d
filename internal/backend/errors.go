package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuotaExceeded 后端返回限流信号（HTTP 429）
	ErrQuotaExceeded = errors.New("quota has reached its limit")
	// ErrContextWindowExceeded 后端判定输入超出模型上下文窗口
	ErrContextWindowExceeded = errors.New("input exceeds the model context window")
)

// TransportError 网络或传输层失败
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError 传输成功但响应无法解码为规范化事件
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("backend protocol error: %s", e.Message)
}

// InvalidStateError 会话排空过程中观察到 InvalidState 事件
type InvalidStateError struct {
	Reason  string
	Message string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s - %s", e.Reason, e.Message)
}

// classifyCloudError 按后端返回的错误文本归类云端流式调用错误。
// 429/限流归为配额错误；校验类"输入过长"归为上下文超限；其余视为传输失败
func classifyCloudError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit"):
		return ErrQuotaExceeded
	case strings.Contains(msg, "ValidationException") && strings.Contains(msg, "Input is too long."):
		return ErrContextWindowExceeded
	case strings.Contains(lower, "context length") ||
		strings.Contains(lower, "input length") ||
		strings.Contains(lower, "maximum context"):
		return ErrContextWindowExceeded
	default:
		return &TransportError{Err: err}
	}
}
