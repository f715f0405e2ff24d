package storage

import (
	"errors"
	"testing"
	"time"

	"chatrelay-backend/internal/model"
)

func TestMemoryStorageSaveAndGet(t *testing.T) {
	store := NewMemoryStorage()
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	ex := &model.Exchange{ID: "ex-1", Model: "chatrelay", ReplyChars: 5, CreatedAt: time.Now()}
	if err := store.SaveExchange(ex); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetExchange("ex-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReplyChars != 5 {
		t.Fatalf("unexpected exchange: %+v", got)
	}

	if _, err := store.GetExchange("missing"); !errors.Is(err, ErrExchangeNotFound) {
		t.Fatalf("expected ErrExchangeNotFound, got %v", err)
	}
}

func TestMemoryStorageRejectsInvalidData(t *testing.T) {
	store := NewMemoryStorage()
	if err := store.SaveExchange(nil); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for nil, got %v", err)
	}
	if err := store.SaveExchange(&model.Exchange{}); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for empty ID, got %v", err)
	}
}

func TestMemoryStorageListNewestFirst(t *testing.T) {
	store := NewMemoryStorage()
	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		err := store.SaveExchange(&model.Exchange{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	exchanges, err := store.ListExchanges()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(exchanges) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(exchanges))
	}
	if exchanges[0].ID != "new" || exchanges[2].ID != "old" {
		t.Fatalf("unexpected order: %s, %s, %s", exchanges[0].ID, exchanges[1].ID, exchanges[2].ID)
	}

	count, _ := store.Count()
	if count != 3 {
		t.Fatalf("count = %d", count)
	}
}
