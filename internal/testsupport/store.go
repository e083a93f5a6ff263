package testsupport

import (
	"context"
	"testing"
	"time"

	"couchlog/internal/backlog"
	"couchlog/internal/config"
	"couchlog/internal/history"
	"couchlog/internal/titles"
)

// MustOpenBacklog opens a backlog.Store for tests and registers cleanup.
func MustOpenBacklog(t testing.TB, cfg *config.Config) *backlog.Store {
	t.Helper()

	store, err := backlog.Open(cfg)
	if err != nil {
		t.Fatalf("backlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue inserts a backlog entry for tests using the provided store.
func Enqueue(t testing.TB, store *backlog.Store, entry backlog.Entry) *backlog.Entry {
	t.Helper()

	if entry.MediaType == "" {
		entry.MediaType = titles.MediaMovie
	}
	if entry.WatchedAt.IsZero() {
		entry.WatchedAt = time.Now().UTC()
	}
	stored, err := store.Enqueue(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return stored
}
