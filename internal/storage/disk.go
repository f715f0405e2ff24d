package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"chatrelay-backend/internal/model"
	"chatrelay-backend/pkg/logger"
)

type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Exchange
	cacheSize int
	index     []*ExchangeIndex
}

type ExchangeIndex struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Exchange),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.saveIndex()
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "exchanges"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) loadIndex() error {
	indexPath := filepath.Join(d.dataDir, "exchanges.json")

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		d.index = []*ExchangeIndex{}
		return d.saveIndex()
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &d.index); err != nil {
		return err
	}

	// 预热最近的记录到缓存
	for _, idx := range d.index {
		if len(d.cache) >= d.cacheSize {
			break
		}

		exchange, err := d.loadExchangeFromFile(idx.ID)
		if err != nil {
			logger.Errorf("Failed to load exchange %s: %v", idx.ID, err)
			continue
		}

		d.cache[idx.ID] = exchange
	}

	return nil
}

func (d *DiskStorage) saveIndex() error {
	data, err := json.MarshalIndent(d.index, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	indexPath := filepath.Join(d.dataDir, "exchanges.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

func (d *DiskStorage) loadExchangeFromFile(exchangeID string) (*model.Exchange, error) {
	exchangePath := filepath.Join(d.dataDir, "exchanges", exchangeID+".json")

	data, err := os.ReadFile(exchangePath)
	if err != nil {
		return nil, err
	}

	var exchange model.Exchange
	if err := json.Unmarshal(data, &exchange); err != nil {
		return nil, err
	}

	return &exchange, nil
}

func (d *DiskStorage) saveExchangeToFile(exchange *model.Exchange) error {
	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	exchangePath := filepath.Join(d.dataDir, "exchanges", exchange.ID+".json")
	if err := os.WriteFile(exchangePath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

func (d *DiskStorage) SaveExchange(exchange *model.Exchange) error {
	if exchange == nil || exchange.ID == "" {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveExchangeToFile(exchange); err != nil {
		return err
	}

	found := false
	for _, idx := range d.index {
		if idx.ID == exchange.ID {
			idx.CreatedAt = exchange.CreatedAt
			found = true
			break
		}
	}
	if !found {
		d.index = append(d.index, &ExchangeIndex{ID: exchange.ID, CreatedAt: exchange.CreatedAt})
	}

	d.cache[exchange.ID] = exchange
	d.evictIfNeeded()

	return d.saveIndex()
}

func (d *DiskStorage) GetExchange(exchangeID string) (*model.Exchange, error) {
	d.mu.RLock()
	if exchange, ok := d.cache[exchangeID]; ok {
		d.mu.RUnlock()
		return exchange, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	exchange, err := d.loadExchangeFromFile(exchangeID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrExchangeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[exchangeID] = exchange
	d.evictIfNeeded()

	return exchange, nil
}

func (d *DiskStorage) ListExchanges() ([]*model.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes := make([]*ExchangeIndex, len(d.index))
	copy(indexes, d.index)

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].CreatedAt.After(indexes[j].CreatedAt)
	})

	exchanges := make([]*model.Exchange, 0, len(indexes))
	for _, idx := range indexes {
		if exchange, ok := d.cache[idx.ID]; ok {
			exchanges = append(exchanges, exchange)
			continue
		}
		exchange, err := d.loadExchangeFromFile(idx.ID)
		if err != nil {
			logger.Errorf("Failed to load exchange %s: %v", idx.ID, err)
			continue
		}
		exchanges = append(exchanges, exchange)
	}

	return exchanges, nil
}

func (d *DiskStorage) Count() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.index), nil
}

// 缓存满时按最旧记录淘汰
func (d *DiskStorage) evictIfNeeded() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, ex := range d.cache {
		if oldestID == "" || ex.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = ex.CreatedAt
		}
	}
	if oldestID != "" {
		delete(d.cache, oldestID)
	}
}
