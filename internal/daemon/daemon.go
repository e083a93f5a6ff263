package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"couchlog/internal/backlog"
	"couchlog/internal/config"
	"couchlog/internal/history"
	"couchlog/internal/logging"
	"couchlog/internal/monitor"
	"couchlog/internal/notifications"
	"couchlog/internal/scrobbler"
)

// Daemon coordinates the monitor loop and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *scrobbler.Engine
	loop    *monitor.Loop
	backlog *backlog.Store
	history *history.Store
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	lastErr atomic.Pointer[string]
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Session       *scrobbler.Snapshot
	BacklogCount  int
	LastError     string
	BacklogDBPath string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, engine *scrobbler.Engine, loop *monitor.Loop, backlogStore *backlog.Store, historyStore *history.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || engine == nil || loop == nil {
		return nil, errors.New("daemon requires config, engine, and monitor loop")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "couchlogd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		loop:     loop,
		backlog:  backlogStore,
		history:  historyStore,
		logPath:  filepath.Join(cfg.Paths.LogDir, "couchlog.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the monitor loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another couchlog daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.loop.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start monitor loop: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("couchlog daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background polling and releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loop.Stop()
	d.engine.End()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("couchlog daemon stopped")
}

// Close stops the daemon and closes the stores.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.backlog != nil {
		firstErr = d.backlog.Close()
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordError stores the most recent failure for status reporting.
func (d *Daemon) RecordError(err error) {
	if err == nil {
		return
	}
	message := err.Error()
	d.lastErr.Store(&message)
}

// BacklogList returns all pending backlog entries.
func (d *Daemon) BacklogList(ctx context.Context) ([]backlog.Entry, error) {
	if d.backlog == nil {
		return nil, errors.New("backlog store unavailable")
	}
	return d.backlog.Pending(ctx)
}

// FlushBacklog replays the backlog immediately.
func (d *Daemon) FlushBacklog(ctx context.Context) (backlog.FlushReport, error) {
	report, err := d.loop.FlushNow(ctx)
	if err != nil {
		d.RecordError(err)
	}
	return report, err
}

// HistoryList returns recent watch-history records.
func (d *Daemon) HistoryList(ctx context.Context, limit int) ([]history.Record, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.Recent(ctx, limit)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg, nil)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Session:       d.engine.Snapshot(),
		BacklogDBPath: d.cfg.BacklogDBPath(),
		LockFilePath:  d.lockPath,
	}
	if message := d.lastErr.Load(); message != nil {
		status.LastError = *message
	}
	if d.backlog != nil {
		if count, err := d.backlog.Count(ctx); err == nil {
			status.BacklogCount = count
		}
	}
	return status
}
