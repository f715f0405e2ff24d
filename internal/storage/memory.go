package storage

import (
	"sort"
	"sync"

	"chatrelay-backend/internal/model"
)

type MemoryStorage struct {
	exchanges map[string]*model.Exchange
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		exchanges: make(map[string]*model.Exchange),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) SaveExchange(exchange *model.Exchange) error {
	if exchange == nil || exchange.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.exchanges[exchange.ID] = exchange
	return nil
}

func (m *MemoryStorage) GetExchange(exchangeID string) (*model.Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exchange, exists := m.exchanges[exchangeID]
	if !exists {
		return nil, ErrExchangeNotFound
	}

	return exchange, nil
}

func (m *MemoryStorage) ListExchanges() ([]*model.Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exchanges := make([]*model.Exchange, 0, len(m.exchanges))
	for _, ex := range m.exchanges {
		exchanges = append(exchanges, ex)
	}

	// 按时间倒序，最近的在前
	sort.Slice(exchanges, func(i, j int) bool {
		return exchanges[i].CreatedAt.After(exchanges[j].CreatedAt)
	})

	return exchanges, nil
}

func (m *MemoryStorage) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.exchanges), nil
}
