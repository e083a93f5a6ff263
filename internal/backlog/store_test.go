package backlog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

func TestEnqueueAndPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	entry, err := store.Enqueue(ctx, backlog.Entry{
		CatalogID: 42,
		MediaType: titles.MediaMovie,
		Title:     "Inception",
		Year:      2010,
		WatchedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected assigned id")
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}
	if pending[0].Title != "Inception" || pending[0].CatalogID != 42 {
		t.Fatalf("unexpected entry: %+v", pending[0])
	}
}

func TestEnqueueDeduplicatesIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	first := testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 7, Title: "Show Name", Season: 2, Episode: 5, MediaType: titles.MediaEpisode})
	second := testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 7, Title: "Show Name", Season: 2, Episode: 5, MediaType: titles.MediaEpisode})
	if first.ID != second.ID {
		t.Fatalf("expected dedupe, got ids %d and %d", first.ID, second.ID)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single entry, got %d", count)
	}

	// A different episode of the same show is a distinct completion.
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 7, Title: "Show Name", Season: 2, Episode: 6, MediaType: titles.MediaEpisode})
	count, _ = store.Count(ctx)
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := backlog.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Enqueue(ctx, backlog.Entry{CatalogID: 42, Title: "Inception", MediaType: titles.MediaMovie}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenBacklog(t, cfg)
	pending, err := reopened.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "Inception" {
		t.Fatalf("expected entry to survive reopen, got %+v", pending)
	}
}

func TestFlushRemovesReportedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, store, backlog.Entry{CatalogID: int64(i + 1), Title: fmt.Sprintf("Movie %d", i+1)})
	}

	var marked []int64
	report, err := store.Flush(ctx, func(_ context.Context, entry backlog.Entry) error {
		marked = append(marked, entry.CatalogID)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(marked) != 3 || marked[0] != 1 {
		t.Fatalf("expected oldest-first replay, got %v", marked)
	}

	count, _ := store.Count(ctx)
	if count != 0 {
		t.Fatalf("expected empty backlog, got %d entries", count)
	}
}

func TestFlushStopsEarlyOnNetworkFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, store, backlog.Entry{CatalogID: int64(i + 1), Title: fmt.Sprintf("Movie %d", i+1)})
	}

	calls := 0
	report, err := store.Flush(ctx, func(_ context.Context, entry backlog.Entry) error {
		calls++
		if calls == 2 {
			return &catalog.MarkError{Kind: catalog.FailureNetwork, Err: errors.New("connection refused")}
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected flush to stop after the network failure, got %d calls", calls)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	pending, _ := store.Pending(ctx)
	if len(pending) != 2 {
		t.Fatalf("expected 2 entries left, got %d", len(pending))
	}
	// Network failures never consume an attempt.
	if pending[0].AttemptCount != 0 {
		t.Fatalf("network failure must not bump attempt_count, got %d", pending[0].AttemptCount)
	}
}

func TestFlushDropsRejectedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})

	report, err := store.Flush(ctx, func(_ context.Context, entry backlog.Entry) error {
		return &catalog.MarkError{Kind: catalog.FailureRejected, Err: errors.New("unknown id")}
	}, nil)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if report.PermanentlyRejected != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	count, _ := store.Count(ctx)
	if count != 0 {
		t.Fatalf("rejected entry should be dropped, %d left", count)
	}
}

func TestFlushCapsRetryAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})

	failAuth := func(_ context.Context, entry backlog.Entry) error {
		return &catalog.MarkError{Kind: catalog.FailureAuth, Err: errors.New("token expired")}
	}

	for i := 0; i < 4; i++ {
		report, err := store.Flush(ctx, failAuth, nil)
		if err != nil {
			t.Fatalf("Flush %d failed: %v", i, err)
		}
		if report.Failed != 1 {
			t.Fatalf("flush %d: unexpected report %+v", i, report)
		}
	}

	pending, _ := store.Pending(ctx)
	if len(pending) != 1 || pending[0].AttemptCount != 4 {
		t.Fatalf("expected 4 recorded attempts, got %+v", pending)
	}
	if pending[0].LastError == "" {
		t.Fatal("expected last_error to be recorded")
	}

	// The fifth failure exhausts the entry.
	report, err := store.Flush(ctx, failAuth, nil)
	if err != nil {
		t.Fatalf("final Flush failed: %v", err)
	}
	if report.PermanentlyRejected != 1 {
		t.Fatalf("unexpected final report: %+v", report)
	}
	count, _ := store.Count(ctx)
	if count != 0 {
		t.Fatalf("exhausted entry should be dropped, %d left", count)
	}
}

func TestUnresolvedEntryKeepsTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	ctx := context.Background()

	testsupport.Enqueue(t, store, backlog.Entry{
		CatalogID: 0,
		MediaType: titles.MediaEpisode,
		Title:     "Show Name",
		Season:    2,
		Episode:   5,
	})

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending[0].CatalogID != 0 || pending[0].Title != "Show Name" {
		t.Fatalf("unresolved entry must keep its raw title: %+v", pending[0])
	}
}
