package scrobbler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"couchlog/internal/backlog"
	"couchlog/internal/catalog"
	"couchlog/internal/history"
	"couchlog/internal/logging"
	"couchlog/internal/mediacache"
	"couchlog/internal/players"
	"couchlog/internal/titles"
)

// Observation is one sample of the focused player window.
type Observation struct {
	Title       string
	ProcessName string
}

// Outcome describes how a completion was reported.
type Outcome string

const (
	// OutcomeDirect means the catalog accepted the completion immediately.
	OutcomeDirect Outcome = "direct"
	// OutcomeBacklogged means the completion was queued for a later flush.
	OutcomeBacklogged Outcome = "backlogged"
	// OutcomeRejected means the catalog permanently refused the completion.
	OutcomeRejected Outcome = "rejected"
)

// Hooks are invoked synchronously from within a tick, with the engine lock
// held. Implementations must return quickly and never call back into the
// engine.
type Hooks struct {
	SessionStarted func(snap *Snapshot)
	Progress       func(snap *Snapshot)
	Completed      func(snap *Snapshot, outcome Outcome)
	Error          func(snap *Snapshot, err error)
}

// Config carries the engine's tunables.
type Config struct {
	// CompletionThreshold is the progress fraction at which a watch counts
	// as complete. The comparison is >=.
	CompletionThreshold float64
	// ResolveCooldown is the minimum wait between failed resolve attempts
	// for the same session.
	ResolveCooldown time.Duration
	// WallClockCap bounds the watch time credited per tick when no position
	// sample is available, so a long gap between ticks cannot inflate
	// progress.
	WallClockCap time.Duration
}

func (c *Config) applyDefaults() {
	if c.CompletionThreshold <= 0 {
		c.CompletionThreshold = 0.80
	}
	if c.ResolveCooldown <= 0 {
		c.ResolveCooldown = time.Minute
	}
	if c.WallClockCap <= 0 {
		c.WallClockCap = 30 * time.Second
	}
}

// PositionSource yields position samples for a process name. Satisfied by
// *players.Registry.
type PositionSource interface {
	Position(ctx context.Context, processName string) (players.Reading, bool)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Resolver  catalog.Resolver
	Positions PositionSource
	Cache     *mediacache.Cache
	Backlog   *backlog.Store
	History   *history.Store
	Hooks     Hooks
	Clock     clockwork.Clock
}

// Engine drives scrobble sessions from window observations.
type Engine struct {
	cfg       Config
	resolver  catalog.Resolver
	positions PositionSource
	cache     *mediacache.Cache
	backlog   *backlog.Store
	history   *history.Store
	hooks     Hooks
	clock     clockwork.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	session *Session
}

// New constructs an engine. A nil Clock falls back to the real clock.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Engine{
		cfg:       cfg,
		resolver:  deps.Resolver,
		positions: deps.Positions,
		cache:     deps.Cache,
		backlog:   deps.Backlog,
		history:   deps.History,
		hooks:     deps.Hooks,
		clock:     deps.Clock,
		logger:    logging.NewComponentLogger(logger, "scrobbler"),
	}
}

// Snapshot returns the current session state, or nil when idle.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	return e.session.snapshot()
}

// Tick processes one observation. A panic inside the tick is recovered and
// turns the tick into a no-op.
func (e *Engine) Tick(ctx context.Context, obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked",
				logging.String(logging.FieldEventType, "tick_panic"),
				logging.Any("panic", r))
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	cand := titles.Parse(obs.Title)
	if obs.ProcessName == "" || cand.IsZero() {
		e.endSessionLocked()
		return
	}

	now := e.clock.Now()

	if e.session == nil || e.session.Candidate.Key() != cand.Key() {
		e.startSessionLocked(cand, now)
	}
	session := e.session
	session.paused = cand.Paused

	if session.State == StateUnresolved {
		e.resolveLocked(ctx, session, now)
	}

	e.advanceProgressLocked(ctx, session, obs.ProcessName, now)
	session.lastSeen = now

	if e.hooks.Progress != nil {
		e.hooks.Progress(session.snapshot())
	}

	if !session.fired {
		if pct, known := session.Percent(); known && pct >= e.cfg.CompletionThreshold {
			e.fireLocked(ctx, session, now)
		}
	}
}

// End discards the active session without persisting partial progress.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endSessionLocked()
}

func (e *Engine) startSessionLocked(cand titles.Candidate, now time.Time) {
	e.session = &Session{
		ID:        uuid.NewString(),
		Candidate: cand,
		State:     StateUnresolved,
		StartedAt: now,
		lastSeen:  now,
	}
	e.logger.Info("tracking started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String(logging.FieldSessionID, e.session.ID),
		logging.String(logging.FieldTitle, cand.Name))
	if e.hooks.SessionStarted != nil {
		e.hooks.SessionStarted(e.session.snapshot())
	}
}

func (e *Engine) endSessionLocked() {
	if e.session == nil {
		return
	}
	e.logger.Info("tracking stopped",
		logging.String(logging.FieldEventType, "session_ended"),
		logging.String(logging.FieldSessionID, e.session.ID),
		logging.String(logging.FieldTitle, e.session.Candidate.Name))
	e.session = nil
}

func (e *Engine) resolveLocked(ctx context.Context, session *Session, now time.Time) {
	if e.cache != nil {
		if item, found := e.cache.Lookup(session.Candidate.Key()); found {
			e.adoptItemLocked(ctx, session, &item)
			return
		}
	}

	if e.resolver == nil {
		return
	}
	if !session.lastResolveAttempt.IsZero() && now.Sub(session.lastResolveAttempt) < e.cfg.ResolveCooldown {
		return
	}
	session.lastResolveAttempt = now

	item, err := e.resolver.Resolve(ctx, session.Candidate)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrAmbiguous) {
			e.logger.Debug("candidate not resolved",
				logging.String(logging.FieldSessionID, session.ID),
				logging.String(logging.FieldTitle, session.Candidate.Name),
				logging.Error(err))
		} else {
			e.logger.Warn("resolve failed",
				logging.String(logging.FieldSessionID, session.ID),
				logging.String(logging.FieldTitle, session.Candidate.Name),
				logging.Error(err))
		}
		return
	}

	if e.cache != nil {
		if err := e.cache.Store(session.Candidate.Key(), *item); err != nil {
			e.logger.Warn("cache store failed", logging.Error(err))
		}
	}
	e.adoptItemLocked(ctx, session, item)
}

// adoptItemLocked attaches a resolved item and suppresses completions that
// are already in the local watch history.
func (e *Engine) adoptItemLocked(ctx context.Context, session *Session, item *catalog.ResolvedItem) {
	session.Item = item
	session.State = StateResolved
	e.logger.Info("candidate resolved",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String(logging.FieldTitle, item.Title),
		logging.Int64(logging.FieldCatalogID, item.CatalogID))

	if e.history == nil {
		return
	}
	watched, err := e.history.Has(ctx, item.CatalogID, session.Candidate.Season, session.Candidate.Episode)
	if err != nil {
		e.logger.Warn("history check failed", logging.Error(err))
		return
	}
	if watched {
		session.fired = true
		session.State = StateCompleted
		e.logger.Info("already watched, completion suppressed",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Int64(logging.FieldCatalogID, item.CatalogID))
	}
}

func (e *Engine) advanceProgressLocked(ctx context.Context, session *Session, processName string, now time.Time) {
	if e.positions != nil {
		if reading, ok := e.positions.Position(ctx, processName); ok {
			if session.haveReading && !session.lastSeen.IsZero() {
				elapsed := now.Sub(session.lastSeen)
				jump := reading.Position - session.reading.Position
				if diff := jump - elapsed; diff > 2*time.Second || diff < -2*time.Second {
					e.logger.Debug("seek detected",
						logging.String(logging.FieldSessionID, session.ID),
						logging.Duration("jump", jump),
						logging.Duration("elapsed", elapsed))
				}
			}
			session.reading = reading
			session.haveReading = true
			return
		}
	}

	session.haveReading = false
	if session.paused || session.lastSeen.IsZero() {
		return
	}
	delta := now.Sub(session.lastSeen)
	if delta < 0 {
		return
	}
	if delta > e.cfg.WallClockCap {
		delta = e.cfg.WallClockCap
	}
	session.accumulated += delta
}

// fireLocked attempts the completion exactly once per session. Every branch
// sets fired so a later tick can never report the same watch twice.
func (e *Engine) fireLocked(ctx context.Context, session *Session, now time.Time) {
	session.fired = true

	if session.Item == nil {
		// Threshold crossed before the title could be resolved. Queue the
		// raw candidate; the flush re-resolves it.
		e.enqueueLocked(ctx, session, now)
		return
	}

	err := e.resolver.MarkWatched(ctx, session.Item, session.episodeRef())
	if err == nil {
		session.State = StateCompleted
		e.recordHistoryLocked(ctx, session, now, history.SourceLive)
		e.logger.Info("marked watched",
			logging.String(logging.FieldEventType, "marked_watched"),
			logging.String(logging.FieldSessionID, session.ID),
			logging.String(logging.FieldTitle, session.Item.Title),
			logging.Int64(logging.FieldCatalogID, session.Item.CatalogID))
		if e.hooks.Completed != nil {
			e.hooks.Completed(session.snapshot(), OutcomeDirect)
		}
		return
	}

	switch catalog.KindOf(err) {
	case catalog.FailureNetwork:
		e.enqueueLocked(ctx, session, now)
	case catalog.FailureRejected:
		session.State = StateCompleted
		e.logger.Warn("completion rejected by catalog",
			logging.String(logging.FieldSessionID, session.ID),
			logging.String(logging.FieldTitle, session.Item.Title),
			logging.Error(err))
		if e.hooks.Completed != nil {
			e.hooks.Completed(session.snapshot(), OutcomeRejected)
		}
	default:
		// Auth and unclassified failures are surfaced, never queued.
		session.State = StateCompleted
		e.logger.Error("mark watched failed",
			logging.String(logging.FieldSessionID, session.ID),
			logging.String(logging.FieldTitle, session.Item.Title),
			logging.Error(err))
		if e.hooks.Error != nil {
			e.hooks.Error(session.snapshot(), err)
		}
	}
}

func (e *Engine) enqueueLocked(ctx context.Context, session *Session, now time.Time) {
	if e.backlog == nil {
		e.logger.Error("no backlog store, completion lost",
			logging.String(logging.FieldSessionID, session.ID))
		return
	}

	entry := backlog.Entry{
		MediaType: session.Candidate.Type,
		Title:     session.Candidate.Name,
		Year:      session.Candidate.Year,
		Season:    session.Candidate.Season,
		Episode:   session.Candidate.Episode,
		WatchedAt: now.UTC(),
	}
	if session.Item != nil {
		entry.CatalogID = session.Item.CatalogID
		entry.Title = session.Item.Title
		entry.MediaType = session.Item.MediaType
	}

	if _, err := e.backlog.Enqueue(ctx, entry); err != nil {
		e.logger.Error("backlog enqueue failed, completion lost",
			logging.String(logging.FieldSessionID, session.ID),
			logging.Error(err))
		if e.hooks.Error != nil {
			e.hooks.Error(session.snapshot(), err)
		}
		return
	}

	session.State = StateCompleted
	e.logger.Info("completion queued for later sync",
		logging.String(logging.FieldEventType, "backlogged"),
		logging.String(logging.FieldSessionID, session.ID),
		logging.String(logging.FieldTitle, entry.Title))
	if e.hooks.Completed != nil {
		e.hooks.Completed(session.snapshot(), OutcomeBacklogged)
	}
}

func (e *Engine) recordHistoryLocked(ctx context.Context, session *Session, now time.Time, source history.Source) {
	if e.history == nil {
		return
	}
	_, err := e.history.Add(ctx, history.Record{
		CatalogID: session.Item.CatalogID,
		MediaType: session.Item.MediaType,
		Title:     session.Item.Title,
		Year:      session.Item.Year,
		Season:    session.Candidate.Season,
		Episode:   session.Candidate.Episode,
		WatchedAt: now.UTC(),
		Source:    source,
	})
	if err != nil {
		e.logger.Warn("history record failed", logging.Error(err))
	}
}
