package storage

import (
	"chatrelay-backend/internal/model"
)

type Storage interface {
	// 交互记录
	SaveExchange(exchange *model.Exchange) error
	GetExchange(exchangeID string) (*model.Exchange, error)
	ListExchanges() ([]*model.Exchange, error)
	Count() (int, error)

	// 存储管理
	Init() error
	Close() error
}
