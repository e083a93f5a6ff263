// Package daemonrun wires the daemon process together: config, logging,
// stores, catalog client, scrobble engine, monitor loop, and IPC.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/catalog/simkl"
	"couchlog/internal/config"
	"couchlog/internal/daemon"
	"couchlog/internal/history"
	"couchlog/internal/ipc"
	"couchlog/internal/logging"
	"couchlog/internal/mediacache"
	"couchlog/internal/monitor"
	"couchlog/internal/notifications"
	"couchlog/internal/players"
	"couchlog/internal/scrobbler"
	"couchlog/internal/titles"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the couchlog daemon runtime loop and blocks until a signal or
// an IPC stop request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "couchlog.log")
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "couchlogd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	backlogStore, err := backlog.Open(cfg)
	if err != nil {
		logger.Error("open backlog store", logging.Error(err))
		return err
	}
	defer backlogStore.Close()

	historyStore, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}
	defer historyStore.Close()

	client, err := simkl.New(cfg.Simkl.ClientID, cfg.Simkl.BaseURL,
		simkl.WithAccessToken(cfg.Simkl.AccessToken),
		simkl.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Simkl.RequestTimeout) * time.Second,
		}))
	if err != nil {
		return fmt.Errorf("build simkl client: %w", err)
	}

	probe := client.ProbeFunc()
	notifier := notifications.NewService(cfg, notifications.Probe(probe))
	cache := mediacache.NewCache(cfg.MediaCachePath(), logger)
	registry := players.NewRegistry(cfg.Players, logger)

	engine := scrobbler.New(scrobbler.Config{
		CompletionThreshold: cfg.Scrobble.CompletionThreshold,
		ResolveCooldown:     time.Duration(cfg.Scrobble.ResolveCooldown) * time.Second,
	}, scrobbler.Deps{
		Resolver:  client,
		Positions: registry,
		Cache:     cache,
		Backlog:   backlogStore,
		History:   historyStore,
		Hooks:     notificationHooks(signalCtx, notifier, backlogStore, logger),
	}, logger)

	loop := monitor.New(monitor.Options{
		Engine:  engine,
		Source:  monitor.NewMPRISSource(),
		Backlog: backlogStore,
		Mark:    flushMarker(client, historyStore, logger),
		Probe:   probe,
		OnFlush: func(report backlog.FlushReport) {
			remaining := report.Failed
			if err := notifier.NotifyBacklogFlushed(signalCtx, report.Succeeded, remaining); err != nil {
				logger.Warn("flush notification failed", logging.Error(err))
			}
		},
		PollInterval:  time.Duration(cfg.Scrobble.PollInterval) * time.Second,
		FlushInterval: time.Duration(cfg.Scrobble.BacklogFlushMinutes) * time.Minute,
	}, logger)

	d, err := daemon.New(cfg, engine, loop, backlogStore, historyStore, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other couchlogd instance is running"))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("couchlog daemon shutting down on signal")
	case <-ipcServer.Shutdown():
		logger.Info("couchlog daemon shutting down on stop request")
	}
	return nil
}

// notificationHooks translates engine events into user notifications.
func notificationHooks(ctx context.Context, notifier notifications.Service, backlogStore *backlog.Store, logger *slog.Logger) scrobbler.Hooks {
	return scrobbler.Hooks{
		SessionStarted: func(snap *scrobbler.Snapshot) {
			if err := notifier.NotifySessionStarted(ctx, snap.Title); err != nil {
				logger.Warn("session notification failed", logging.Error(err))
			}
		},
		Completed: func(snap *scrobbler.Snapshot, outcome scrobbler.Outcome) {
			var err error
			switch outcome {
			case scrobbler.OutcomeDirect:
				err = notifier.NotifyWatched(ctx, snap.Title)
			case scrobbler.OutcomeBacklogged:
				pending := 0
				if count, countErr := backlogStore.Count(ctx); countErr == nil {
					pending = count
				}
				err = notifier.NotifyBacklogged(ctx, snap.Title, pending)
			}
			if err != nil {
				logger.Warn("completion notification failed", logging.Error(err))
			}
		},
		Error: func(snap *scrobbler.Snapshot, failure error) {
			var err error
			if catalog.KindOf(failure) == catalog.FailureAuth {
				err = notifier.NotifyAuthRequired(ctx)
			} else {
				err = notifier.NotifyError(ctx, failure, snap.Title)
			}
			if err != nil {
				logger.Warn("error notification failed", logging.Error(err))
			}
		},
	}
}

// flushMarker reports one backlog entry, re-resolving entries that were
// queued before the title could be matched.
func flushMarker(client *simkl.Client, historyStore *history.Store, logger *slog.Logger) backlog.Marker {
	return func(ctx context.Context, entry backlog.Entry) error {
		item := &catalog.ResolvedItem{
			CatalogID: entry.CatalogID,
			Title:     entry.Title,
			MediaType: entry.MediaType,
			Year:      entry.Year,
		}
		if entry.CatalogID == 0 {
			resolved, err := client.Resolve(ctx, titles.Candidate{
				Name:    entry.Title,
				Year:    entry.Year,
				Type:    entry.MediaType,
				Season:  entry.Season,
				Episode: entry.Episode,
			})
			if err != nil {
				return err
			}
			item = resolved
		}

		var episode *catalog.EpisodeRef
		if entry.MediaType == titles.MediaEpisode {
			episode = &catalog.EpisodeRef{Season: entry.Season, Episode: entry.Episode}
		}
		if err := client.MarkWatched(ctx, item, episode); err != nil {
			return err
		}

		if _, err := historyStore.Add(ctx, history.Record{
			CatalogID: item.CatalogID,
			MediaType: item.MediaType,
			Title:     item.Title,
			Year:      item.Year,
			Season:    entry.Season,
			Episode:   entry.Episode,
			WatchedAt: entry.WatchedAt,
			Source:    history.SourceBacklog,
		}); err != nil {
			logger.Warn("history record failed after flush", logging.Error(err))
		}
		return nil
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
