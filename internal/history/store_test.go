package history_test

import (
	"context"
	"testing"
	"time"

	"couchlog/internal/history"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

func TestAddAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour).UTC()
	if _, err := store.Add(ctx, history.Record{
		CatalogID: 42,
		MediaType: titles.MediaMovie,
		Title:     "Inception",
		Year:      2010,
		WatchedAt: older,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, history.Record{
		CatalogID: 7,
		MediaType: titles.MediaEpisode,
		Title:     "Show Name",
		Season:    2,
		Episode:   5,
		Source:    history.SourceBacklog,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "Show Name" {
		t.Fatalf("expected newest first, got %q", records[0].Title)
	}
	if records[0].Source != history.SourceBacklog {
		t.Fatalf("unexpected source: %q", records[0].Source)
	}
	if records[1].Source != history.SourceLive {
		t.Fatalf("expected live default source, got %q", records[1].Source)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Add(ctx, history.Record{
			CatalogID: int64(i + 1),
			MediaType: titles.MediaMovie,
			Title:     "Movie",
		}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestHasFindsExactIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if _, err := store.Add(ctx, history.Record{
		CatalogID: 7,
		MediaType: titles.MediaEpisode,
		Title:     "Show Name",
		Season:    2,
		Episode:   5,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	found, err := store.Has(ctx, 7, 2, 5)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !found {
		t.Fatal("expected recorded episode to be found")
	}

	found, err = store.Has(ctx, 7, 2, 6)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if found {
		t.Fatal("different episode must not match")
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Add(ctx, history.Record{CatalogID: 42, MediaType: titles.MediaMovie, Title: "Inception"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected record to survive reopen, got %d", count)
	}
}
