package storage

import (
	"errors"
	"testing"
	"time"

	"chatrelay-backend/internal/model"
)

func TestDiskStoragePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir, 10)
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	ex := &model.Exchange{ID: "ex-1", Model: "chatrelay", ReplyChars: 7, CreatedAt: time.Now()}
	if err := store.SaveExchange(ex); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewDiskStorage(dir, 10)
	if err := reopened.Init(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetExchange("ex-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.ReplyChars != 7 {
		t.Fatalf("unexpected exchange: %+v", got)
	}

	count, _ := reopened.Count()
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestDiskStorageEvictsBeyondCacheSize(t *testing.T) {
	dir := t.TempDir()

	store := NewDiskStorage(dir, 2)
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		err := store.SaveExchange(&model.Exchange{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	// evicted entries must still be readable from disk
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.GetExchange(id); err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
	}

	exchanges, err := store.ListExchanges()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(exchanges) != 3 || exchanges[0].ID != "c" {
		t.Fatalf("unexpected list: %+v", exchanges)
	}
}

func TestDiskStorageGetMissing(t *testing.T) {
	store := NewDiskStorage(t.TempDir(), 10)
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	if _, err := store.GetExchange("missing"); !errors.Is(err, ErrExchangeNotFound) {
		t.Fatalf("expected ErrExchangeNotFound, got %v", err)
	}
}
