package scrobbler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"couchlog/internal/catalog"
	"couchlog/internal/history"
	"couchlog/internal/players"
	"couchlog/internal/scrobbler"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

type stubResolver struct {
	item         *catalog.ResolvedItem
	resolveErr   error
	markErr      error
	resolveCalls int
	markCalls    int
}

func (s *stubResolver) Resolve(context.Context, titles.Candidate) (*catalog.ResolvedItem, error) {
	s.resolveCalls++
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.item, nil
}

func (s *stubResolver) MarkWatched(context.Context, *catalog.ResolvedItem, *catalog.EpisodeRef) error {
	s.markCalls++
	return s.markErr
}

type stubPositions struct {
	reading players.Reading
	ok      bool
}

func (s *stubPositions) Position(context.Context, string) (players.Reading, bool) {
	return s.reading, s.ok
}

func movieItem() *catalog.ResolvedItem {
	return &catalog.ResolvedItem{
		CatalogID:      42,
		Title:          "Inception",
		MediaType:      titles.MediaMovie,
		Year:           2010,
		RuntimeMinutes: 100,
	}
}

func newEngine(t *testing.T, resolver *stubResolver, positions scrobbler.PositionSource, deps *scrobbler.Deps) (*scrobbler.Engine, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	d := scrobbler.Deps{Clock: clock, Resolver: resolver, Positions: positions}
	if deps != nil {
		d.Backlog = deps.Backlog
		d.History = deps.History
		d.Hooks = deps.Hooks
		d.Cache = deps.Cache
	}
	engine := scrobbler.New(scrobbler.Config{
		CompletionThreshold: 0.80,
		ResolveCooldown:     time.Minute,
		WallClockCap:        30 * time.Second,
	}, d, nil)
	return engine, clock
}

func historyRecordFor(item *catalog.ResolvedItem) history.Record {
	return history.Record{
		CatalogID: item.CatalogID,
		MediaType: item.MediaType,
		Title:     item.Title,
		Year:      item.Year,
	}
}

func TestCompletionFiresAtThresholdExactlyOnce(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	positions := &stubPositions{reading: players.Reading{Position: 80 * time.Minute, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, nil)

	obs := scrobbler.Observation{Title: "Inception.2010.mkv - VLC", ProcessName: "vlc"}
	engine.Tick(context.Background(), obs)
	if resolver.markCalls != 1 {
		t.Fatalf("expected 1 mark at exactly the threshold, got %d", resolver.markCalls)
	}

	// Further ticks past the threshold must not mark again.
	positions.reading.Position = 90 * time.Minute
	engine.Tick(context.Background(), obs)
	engine.Tick(context.Background(), obs)
	if resolver.markCalls != 1 {
		t.Fatalf("completion must fire exactly once, got %d marks", resolver.markCalls)
	}

	snap := engine.Snapshot()
	if snap == nil || snap.State != scrobbler.StateCompleted {
		t.Fatalf("expected completed session, got %+v", snap)
	}
}

func TestBelowThresholdDoesNotFire(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	positions := &stubPositions{reading: players.Reading{Position: 79*time.Minute + 59*time.Second, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, nil)

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})
	if resolver.markCalls != 0 {
		t.Fatalf("must not mark below threshold, got %d marks", resolver.markCalls)
	}
}

func TestNewTitleReplacesSession(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	positions := &stubPositions{reading: players.Reading{Position: 10 * time.Minute, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, nil)

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})
	first := engine.Snapshot()

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Interstellar.2014.mkv", ProcessName: "vlc"})
	second := engine.Snapshot()

	if first.ID == second.ID {
		t.Fatal("a different title must start a fresh session")
	}
}

func TestNoPlayerEndsSession(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	engine, _ := newEngine(t, resolver, &stubPositions{}, nil)

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})
	if engine.Snapshot() == nil {
		t.Fatal("expected active session")
	}

	engine.Tick(context.Background(), scrobbler.Observation{})
	if engine.Snapshot() != nil {
		t.Fatal("expected idle engine after the player went away")
	}
}

func TestWallClockFallbackUsesRuntime(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	engine, clock := newEngine(t, resolver, &stubPositions{ok: false}, nil)

	obs := scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"}
	engine.Tick(context.Background(), obs)

	// 100 min runtime, threshold 0.80: 80 minutes of credited watch time.
	// 10s ticks keep every delta under the cap.
	for i := 0; i < 479; i++ {
		clock.Advance(10 * time.Second)
		engine.Tick(context.Background(), obs)
	}
	if resolver.markCalls != 0 {
		t.Fatalf("fired before enough wall-clock time, marks=%d", resolver.markCalls)
	}

	clock.Advance(10 * time.Second)
	engine.Tick(context.Background(), obs)
	if resolver.markCalls != 1 {
		t.Fatalf("expected completion after 80 minutes of wall-clock, got %d marks", resolver.markCalls)
	}
}

func TestWallClockGapIsCapped(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	engine, clock := newEngine(t, resolver, &stubPositions{ok: false}, nil)

	obs := scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"}
	engine.Tick(context.Background(), obs)

	// A machine-sleep gap of two hours must credit at most the per-tick cap.
	clock.Advance(2 * time.Hour)
	engine.Tick(context.Background(), obs)

	snap := engine.Snapshot()
	if !snap.HasPct {
		t.Fatal("expected a percent from accumulated time")
	}
	// 30s of 100 minutes = 0.5%.
	if snap.Percent > 0.006 {
		t.Fatalf("gap not capped, percent=%v", snap.Percent)
	}
	if resolver.markCalls != 0 {
		t.Fatal("capped gap must not complete the session")
	}
}

func TestPauseSuspendsAccumulation(t *testing.T) {
	resolver := &stubResolver{item: movieItem()}
	engine, clock := newEngine(t, resolver, &stubPositions{ok: false}, nil)

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})

	for i := 0; i < 10; i++ {
		clock.Advance(10 * time.Second)
		engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv [Paused]", ProcessName: "vlc"})
	}

	snap := engine.Snapshot()
	if !snap.Paused {
		t.Fatal("expected paused session")
	}
	if snap.HasPct && snap.Percent > 0 {
		t.Fatalf("paused ticks must not accumulate, percent=%v", snap.Percent)
	}
}

func TestNetworkFailureRoutesToBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)

	resolver := &stubResolver{
		item:    movieItem(),
		markErr: &catalog.MarkError{Kind: catalog.FailureNetwork, Err: errors.New("connection refused")},
	}
	positions := &stubPositions{reading: players.Reading{Position: 90 * time.Minute, Duration: 100 * time.Minute}, ok: true}

	var outcome scrobbler.Outcome
	engine, _ := newEngine(t, resolver, positions, &scrobbler.Deps{
		Backlog: store,
		Hooks: scrobbler.Hooks{
			Completed: func(_ *scrobbler.Snapshot, o scrobbler.Outcome) { outcome = o },
		},
	})

	obs := scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"}
	engine.Tick(context.Background(), obs)

	if outcome != scrobbler.OutcomeBacklogged {
		t.Fatalf("expected backlogged outcome, got %q", outcome)
	}
	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].CatalogID != 42 {
		t.Fatalf("expected one backlog entry for catalog 42, got %+v", pending)
	}

	// The session is complete; no second mark attempt.
	engine.Tick(context.Background(), obs)
	if resolver.markCalls != 1 {
		t.Fatalf("expected single mark attempt, got %d", resolver.markCalls)
	}
}

func TestAuthFailureDoesNotEnqueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)

	resolver := &stubResolver{
		item:    movieItem(),
		markErr: &catalog.MarkError{Kind: catalog.FailureAuth, Err: errors.New("token expired")},
	}
	positions := &stubPositions{reading: players.Reading{Position: 90 * time.Minute, Duration: 100 * time.Minute}, ok: true}

	var hookErr error
	engine, _ := newEngine(t, resolver, positions, &scrobbler.Deps{
		Backlog: store,
		Hooks: scrobbler.Hooks{
			Error: func(_ *scrobbler.Snapshot, err error) { hookErr = err },
		},
	})

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})

	if hookErr == nil {
		t.Fatal("expected error hook for auth failure")
	}
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Fatalf("auth failures must not reach the backlog, got %d entries", count)
	}
}

func TestUnresolvedCompletionQueuesRawTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)

	resolver := &stubResolver{resolveErr: errors.New("service down")}
	positions := &stubPositions{reading: players.Reading{Position: 90 * time.Minute, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, &scrobbler.Deps{Backlog: store})

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Show.Name.S02E05.mkv", ProcessName: "mpv"})

	pending, err := store.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one backlog entry, got %d", len(pending))
	}
	entry := pending[0]
	if entry.CatalogID != 0 || entry.Title != "Show Name" || entry.Season != 2 || entry.Episode != 5 {
		t.Fatalf("unresolved entry must keep the raw candidate: %+v", entry)
	}
}

func TestResolveRetriesHonorCooldown(t *testing.T) {
	resolver := &stubResolver{resolveErr: catalog.ErrNotFound}
	engine, clock := newEngine(t, resolver, &stubPositions{}, nil)

	obs := scrobbler.Observation{Title: "Obscure.Movie.2020.mkv", ProcessName: "vlc"}
	engine.Tick(context.Background(), obs)
	if resolver.resolveCalls != 1 {
		t.Fatalf("expected initial resolve attempt, got %d", resolver.resolveCalls)
	}

	clock.Advance(10 * time.Second)
	engine.Tick(context.Background(), obs)
	if resolver.resolveCalls != 1 {
		t.Fatalf("resolve retried inside the cooldown, calls=%d", resolver.resolveCalls)
	}

	clock.Advance(time.Minute)
	engine.Tick(context.Background(), obs)
	if resolver.resolveCalls != 2 {
		t.Fatalf("expected retry after cooldown, calls=%d", resolver.resolveCalls)
	}
}

func TestHistorySuppressesRewatchMark(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	historyStore := testsupport.MustOpenHistory(t, cfg)

	item := movieItem()
	if _, err := historyStore.Add(context.Background(), historyRecordFor(item)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	resolver := &stubResolver{item: item}
	positions := &stubPositions{reading: players.Reading{Position: 95 * time.Minute, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, &scrobbler.Deps{History: historyStore})

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})

	if resolver.markCalls != 0 {
		t.Fatalf("already-watched title must not be re-marked, got %d marks", resolver.markCalls)
	}
	snap := engine.Snapshot()
	if snap.State != scrobbler.StateCompleted {
		t.Fatalf("expected suppressed-complete state, got %s", snap.State)
	}
}

func TestDirectSuccessRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	historyStore := testsupport.MustOpenHistory(t, cfg)

	resolver := &stubResolver{item: movieItem()}
	positions := &stubPositions{reading: players.Reading{Position: 90 * time.Minute, Duration: 100 * time.Minute}, ok: true}
	engine, _ := newEngine(t, resolver, positions, &scrobbler.Deps{History: historyStore})

	engine.Tick(context.Background(), scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})

	records, err := historyStore.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 || records[0].CatalogID != 42 {
		t.Fatalf("expected history record for catalog 42, got %+v", records)
	}
}
