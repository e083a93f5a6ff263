package ipc_test

import (
	"context"
	"testing"
	"time"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/config"
	"couchlog/internal/daemon"
	"couchlog/internal/ipc"
	"couchlog/internal/monitor"
	"couchlog/internal/scrobbler"
	"couchlog/internal/testsupport"
	"couchlog/internal/titles"
)

type acceptAllResolver struct{}

func (acceptAllResolver) Resolve(_ context.Context, cand titles.Candidate) (*catalog.ResolvedItem, error) {
	return &catalog.ResolvedItem{CatalogID: 1, Title: cand.Name, MediaType: cand.Type}, nil
}

func (acceptAllResolver) MarkWatched(context.Context, *catalog.ResolvedItem, *catalog.EpisodeRef) error {
	return nil
}

type idleSource struct{}

func (idleSource) Observe(context.Context) (scrobbler.Observation, error) {
	return scrobbler.Observation{}, nil
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *config.Config, *backlog.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	backlogStore := testsupport.MustOpenBacklog(t, cfg)
	historyStore := testsupport.MustOpenHistory(t, cfg)

	resolver := acceptAllResolver{}
	engine := scrobbler.New(scrobbler.Config{}, scrobbler.Deps{
		Resolver: resolver,
		Backlog:  backlogStore,
		History:  historyStore,
	}, nil)

	loop := monitor.New(monitor.Options{
		Engine:  engine,
		Source:  idleSource{},
		Backlog: backlogStore,
		Mark: func(context.Context, backlog.Entry) error {
			return nil
		},
	}, nil)

	d, err := daemon.New(cfg, engine, loop, backlogStore, historyStore, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, cfg, backlogStore
}

func newTestServerAndClient(t *testing.T, d *daemon.Daemon, cfg *config.Config) *ipc.Client {
	t.Helper()

	server, err := ipc.NewServer(context.Background(), cfg.SocketPath(), d, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPing(t *testing.T) {
	d, cfg, _ := newTestDaemon(t)
	client := newTestServerAndClient(t, d, cfg)

	resp, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if resp.PID <= 0 {
		t.Fatalf("expected a pid, got %d", resp.PID)
	}
}

func TestStatusReflectsBacklog(t *testing.T) {
	d, cfg, store := newTestDaemon(t)
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})
	client := newTestServerAndClient(t, d, cfg)

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon was never started")
	}
	if resp.BacklogCount != 1 {
		t.Fatalf("expected backlog count 1, got %d", resp.BacklogCount)
	}
	if resp.Session != nil {
		t.Fatalf("expected idle session, got %+v", resp.Session)
	}
}

func TestBacklogListAndFlush(t *testing.T) {
	d, cfg, store := newTestDaemon(t)
	testsupport.Enqueue(t, store, backlog.Entry{CatalogID: 42, Title: "Inception"})
	client := newTestServerAndClient(t, d, cfg)

	list, err := client.BacklogList()
	if err != nil {
		t.Fatalf("BacklogList failed: %v", err)
	}
	if len(list.Entries) != 1 || list.Entries[0].Title != "Inception" {
		t.Fatalf("unexpected entries: %+v", list.Entries)
	}

	flush, err := client.BacklogFlush()
	if err != nil {
		t.Fatalf("BacklogFlush failed: %v", err)
	}
	if flush.Result.Succeeded != 1 {
		t.Fatalf("unexpected flush result: %+v", flush.Result)
	}

	list, err = client.BacklogList()
	if err != nil {
		t.Fatalf("BacklogList failed: %v", err)
	}
	if len(list.Entries) != 0 {
		t.Fatalf("expected empty backlog after flush, got %d", len(list.Entries))
	}
}

func TestHistoryList(t *testing.T) {
	d, cfg, _ := newTestDaemon(t)
	client := newTestServerAndClient(t, d, cfg)

	resp, err := client.HistoryList(10)
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(resp.Records) != 0 {
		t.Fatalf("expected empty history, got %+v", resp.Records)
	}
}

func TestStopSignalsShutdown(t *testing.T) {
	d, cfg, _ := newTestDaemon(t)

	server, err := ipc.NewServer(context.Background(), cfg.SocketPath(), d, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	defer server.Close()

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stopped response")
	}

	select {
	case <-server.Shutdown():
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown channel not signaled")
	}
}
