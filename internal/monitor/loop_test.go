package monitor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/monitor"
	"couchlog/internal/scrobbler"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

type scriptedSource struct {
	obs   scrobbler.Observation
	ticks chan struct{}
}

func newScriptedSource(obs scrobbler.Observation) *scriptedSource {
	return &scriptedSource{obs: obs, ticks: make(chan struct{}, 64)}
}

func (s *scriptedSource) Observe(context.Context) (scrobbler.Observation, error) {
	select {
	case s.ticks <- struct{}{}:
	default:
	}
	return s.obs, nil
}

func (s *scriptedSource) waitTick(t *testing.T) {
	t.Helper()
	select {
	case <-s.ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a tick")
	}
}

type staticResolver struct {
	item    *catalog.ResolvedItem
	markErr error
}

func (r *staticResolver) Resolve(context.Context, titles.Candidate) (*catalog.ResolvedItem, error) {
	return r.item, nil
}

func (r *staticResolver) MarkWatched(context.Context, *catalog.ResolvedItem, *catalog.EpisodeRef) error {
	return r.markErr
}

func newIdleEngine() *scrobbler.Engine {
	resolver := &staticResolver{item: &catalog.ResolvedItem{CatalogID: 1, Title: "Movie", MediaType: titles.MediaMovie}}
	return scrobbler.New(scrobbler.Config{}, scrobbler.Deps{Resolver: resolver}, nil)
}

func TestLoopFeedsEngineOnEachTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := newScriptedSource(scrobbler.Observation{Title: "Inception.2010.mkv", ProcessName: "vlc"})
	engine := newIdleEngine()

	loop := monitor.New(monitor.Options{
		Engine:       engine,
		Source:       source,
		PollInterval: 10 * time.Second,
		Clock:        clock,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer loop.Stop()

	// The loop ticks once immediately on start.
	source.waitTick(t)
	snap := engine.Snapshot()
	if snap == nil || snap.Title != "Inception" {
		t.Fatalf("expected active session after first tick, got %+v", snap)
	}

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	source.waitTick(t)
}

func TestLoopStopIsClean(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := newScriptedSource(scrobbler.Observation{})
	loop := monitor.New(monitor.Options{
		Engine:       newIdleEngine(),
		Source:       source,
		PollInterval: 10 * time.Second,
		Clock:        clock,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	source.waitTick(t)

	loop.Stop()
	if loop.Running() {
		t.Fatal("expected stopped loop")
	}
	// Stopping twice is a no-op.
	loop.Stop()

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	loop.Stop()
}

func TestFlushNowReplaysBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})

	var marks atomic.Int64
	loop := monitor.New(monitor.Options{
		Engine:  newIdleEngine(),
		Source:  newScriptedSource(scrobbler.Observation{}),
		Backlog: store,
		Mark: func(context.Context, backlog.Entry) error {
			marks.Add(1)
			return nil
		},
		Probe: func(context.Context) bool { return true },
		Clock: clockwork.NewFakeClock(),
	}, nil)

	report, err := loop.FlushNow(context.Background())
	if err != nil {
		t.Fatalf("FlushNow failed: %v", err)
	}
	if report.Succeeded != 1 || marks.Load() != 1 {
		t.Fatalf("expected one replayed entry, report=%+v marks=%d", report, marks.Load())
	}
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Fatalf("expected empty backlog, got %d", count)
	}
}

func TestFlushSkippedWhileOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})

	var marks atomic.Int64
	loop := monitor.New(monitor.Options{
		Engine:  newIdleEngine(),
		Source:  newScriptedSource(scrobbler.Observation{}),
		Backlog: store,
		Mark: func(context.Context, backlog.Entry) error {
			marks.Add(1)
			return nil
		},
		Probe: func(context.Context) bool { return false },
		Clock: clockwork.NewFakeClock(),
	}, nil)

	report, err := loop.FlushNow(context.Background())
	if err != nil {
		t.Fatalf("FlushNow failed: %v", err)
	}
	if report.Total() != 0 || marks.Load() != 0 {
		t.Fatalf("offline flush must be a no-op, report=%+v marks=%d", report, marks.Load())
	}
	count, _ := store.Count(context.Background())
	if count != 1 {
		t.Fatalf("entry must remain while offline, got %d", count)
	}
}

func TestScheduledFlushRunsOnFirstTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenBacklog(t, cfg)
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})

	clock := clockwork.NewFakeClock()
	source := newScriptedSource(scrobbler.Observation{})
	flushed := make(chan struct{}, 1)

	loop := monitor.New(monitor.Options{
		Engine:  newIdleEngine(),
		Source:  source,
		Backlog: store,
		Mark: func(context.Context, backlog.Entry) error {
			select {
			case flushed <- struct{}{}:
			default:
			}
			return nil
		},
		Probe:         func(context.Context) bool { return true },
		PollInterval:  10 * time.Second,
		FlushInterval: 5 * time.Minute,
		Clock:         clock,
	}, nil)

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer loop.Stop()

	select {
	case <-flushed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a flush on the first tick")
	}
}
