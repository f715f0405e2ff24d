package backend

import (
	"context"
	"io"
	"sync"
)

// MockClient 确定性测试后端：预置若干事件批次，每次 Open 按 FIFO 取走一批
type MockClient struct {
	mu      sync.Mutex
	batches [][]Event
}

func NewMockClient(batches [][]Event) *MockClient {
	copied := make([][]Event, len(batches))
	copy(copied, batches)
	return &MockClient{batches: copied}
}

func (m *MockClient) Open(ctx context.Context, req *ConversationRequest) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var batch []Event
	if len(m.batches) > 0 {
		batch = m.batches[0]
		m.batches = m.batches[1:]
	} else {
		batch = defaultMockBatch()
	}

	// 批次内部反转，Next 从尾部弹出，整体仍按压入顺序产出
	events := make([]Event, len(batch))
	for i, ev := range batch {
		events[len(batch)-1-i] = ev
	}

	return &mockSession{events: events}, nil
}

// 预置批次耗尽后的兜底问候，保证 mock 后端总能完成一次交互
func defaultMockBatch() []Event {
	return []Event{
		AssistantText("Hello!"),
		AssistantText(" How"),
		AssistantText(" can"),
		AssistantText(" I"),
		AssistantText(" assist"),
		AssistantText(" you"),
		AssistantText(" today?"),
	}
}

type mockSession struct {
	events []Event
}

func (s *mockSession) Next(ctx context.Context) (Event, error) {
	if len(s.events) == 0 {
		return Event{}, io.EOF
	}
	ev := s.events[len(s.events)-1]
	s.events = s.events[:len(s.events)-1]
	return ev, nil
}

func (s *mockSession) Close() error {
	return nil
}
