package daemon_test

import (
	"context"
	"testing"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/config"
	"couchlog/internal/daemon"
	"couchlog/internal/monitor"
	"couchlog/internal/scrobbler"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

type nopResolver struct{}

func (nopResolver) Resolve(_ context.Context, cand titles.Candidate) (*catalog.ResolvedItem, error) {
	return &catalog.ResolvedItem{CatalogID: 1, Title: cand.Name, MediaType: cand.Type}, nil
}

func (nopResolver) MarkWatched(context.Context, *catalog.ResolvedItem, *catalog.EpisodeRef) error {
	return nil
}

type idleSource struct{}

func (idleSource) Observe(context.Context) (scrobbler.Observation, error) {
	return scrobbler.Observation{}, nil
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	backlogStore := testsupport.MustOpenBacklog(t, cfg)
	historyStore := testsupport.MustOpenHistory(t, cfg)
	engine := scrobbler.New(scrobbler.Config{}, scrobbler.Deps{
		Resolver: nopResolver{},
		Backlog:  backlogStore,
		History:  historyStore,
	}, nil)
	loop := monitor.New(monitor.Options{
		Engine:  engine,
		Source:  idleSource{},
		Backlog: backlogStore,
		Mark:    func(context.Context, backlog.Entry) error { return nil },
	}, nil)

	d, err := daemon.New(cfg, engine, loop, backlogStore, historyStore, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.PID <= 0 {
		t.Fatal("expected a pid in status")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected stopped daemon")
	}

	// Stop twice is harmless; a restart works.
	d.Stop()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second instance to be rejected by the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected lock to be free after stop: %v", err)
	}
}

func TestRecordErrorShowsInStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	d.RecordError(context.DeadlineExceeded)
	status := d.Status(context.Background())
	if status.LastError == "" {
		t.Fatal("expected recorded error in status")
	}
}
