package testsupport

import (
	"context"
	"testing"

	"copydesk/internal/config"
	"copydesk/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPost creates a pending queue item for tests using the provided store.
func NewPost(t testing.TB, store *queue.Store, title string) *queue.Item {
	t.Helper()

	item, err := store.NewItem(context.Background(), &queue.Item{Title: title})
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item
}
