package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"couchlog/internal/backlog"
	"couchlog/internal/logging"
	"couchlog/internal/scrobbler"
)

// WindowSource yields the focused player window, if any. An empty
// Observation means no supported player is in focus, which ends the active
// session.
type WindowSource interface {
	Observe(ctx context.Context) (scrobbler.Observation, error)
}

// Marker reports one backlog entry; passed through to backlog.Flush.
type Marker = backlog.Marker

// Options carries the loop's collaborators and tunables.
type Options struct {
	Engine  *scrobbler.Engine
	Source  WindowSource
	Backlog *backlog.Store
	// Mark replays one backlog entry. Required when Backlog is set.
	Mark Marker
	// Probe reports whether the catalog service is reachable. Flushes are
	// skipped while it returns false.
	Probe func(ctx context.Context) bool
	// OnFlush is invoked after a flush pass that touched at least one entry.
	OnFlush func(report backlog.FlushReport)

	PollInterval  time.Duration
	FlushInterval time.Duration
	Clock         clockwork.Clock
}

// Loop is the daemon's heartbeat. Ticks are strictly sequential.
type Loop struct {
	engine  *scrobbler.Engine
	source  WindowSource
	backlog *backlog.Store
	mark    Marker
	probe   func(ctx context.Context) bool
	onFlush func(report backlog.FlushReport)

	pollInterval  time.Duration
	flushInterval time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	flushMu   sync.Mutex
	lastFlush time.Time
}

// New constructs a loop.
func New(opts Options, logger *slog.Logger) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Loop{
		engine:        opts.Engine,
		source:        opts.Source,
		backlog:       opts.Backlog,
		mark:          opts.Mark,
		probe:         opts.Probe,
		onFlush:       opts.OnFlush,
		pollInterval:  opts.PollInterval,
		flushInterval: opts.FlushInterval,
		clock:         opts.Clock,
		logger:        logging.NewComponentLogger(logger, "monitor"),
	}
}

// Start begins background polling.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.wg.Add(1)
	go l.run(runCtx)
	return nil
}

// Stop aborts polling between ticks and waits for the loop to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
}

// Running reports whether the loop is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := l.clock.NewTicker(l.pollInterval)
	defer ticker.Stop()

	// First tick fires immediately so a daemon restart resumes tracking
	// without waiting a full interval.
	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	obs, err := l.source.Observe(ctx)
	if err != nil {
		l.logger.Debug("window observation failed",
			logging.String(logging.FieldEventType, "observe_failed"),
			logging.Error(err))
		obs = scrobbler.Observation{}
	}
	l.engine.Tick(ctx, obs)

	if l.backlog == nil || l.mark == nil {
		return
	}
	now := l.clock.Now()
	l.flushMu.Lock()
	due := l.lastFlush.IsZero() || now.Sub(l.lastFlush) >= l.flushInterval
	if due {
		l.lastFlush = now
	}
	l.flushMu.Unlock()
	if due {
		l.flush(ctx)
	}
}

// FlushNow replays the backlog immediately, subject to the connectivity
// probe.
func (l *Loop) FlushNow(ctx context.Context) (backlog.FlushReport, error) {
	l.flushMu.Lock()
	l.lastFlush = l.clock.Now()
	l.flushMu.Unlock()
	return l.doFlush(ctx)
}

func (l *Loop) flush(ctx context.Context) {
	if _, err := l.doFlush(ctx); err != nil {
		l.logger.Warn("backlog flush failed",
			logging.String(logging.FieldEventType, "flush_failed"),
			logging.Error(err))
	}
}

func (l *Loop) doFlush(ctx context.Context) (backlog.FlushReport, error) {
	if l.backlog == nil || l.mark == nil {
		return backlog.FlushReport{}, nil
	}
	count, err := l.backlog.Count(ctx)
	if err != nil {
		return backlog.FlushReport{}, err
	}
	if count == 0 {
		return backlog.FlushReport{}, nil
	}
	if l.probe != nil && !l.probe(ctx) {
		l.logger.Debug("service unreachable, flush skipped",
			logging.String(logging.FieldEventType, "flush_skipped"))
		return backlog.FlushReport{}, nil
	}
	report, err := l.backlog.Flush(ctx, l.mark, l.logger)
	if err == nil && l.onFlush != nil && report.Total() > 0 {
		l.onFlush(report)
	}
	return report, err
}
