package scrobbler

import (
	"time"

	"couchlog/internal/catalog"
	"couchlog/internal/players"
	"couchlog/internal/titles"
)

// State describes where a session is in its lifecycle.
type State string

const (
	// StateUnresolved means the title is being tracked but not yet matched
	// against the catalog.
	StateUnresolved State = "tracking-unresolved"
	// StateResolved means the title is matched and progress counts toward
	// the completion threshold.
	StateResolved State = "tracking-resolved"
	// StateCompleted means the completion was reported (or routed to the
	// backlog). The session stays active until the window changes.
	StateCompleted State = "completed"
)

// Session is one continuous watch of a single title.
type Session struct {
	ID        string
	Candidate titles.Candidate
	Item      *catalog.ResolvedItem
	State     State
	StartedAt time.Time

	paused             bool
	fired              bool
	lastSeen           time.Time
	lastResolveAttempt time.Time
	accumulated        time.Duration
	reading            players.Reading
	haveReading        bool
}

// Percent returns playback progress in [0, ~1+]. known is false when neither
// a position sample nor a usable runtime is available.
func (s *Session) Percent() (float64, bool) {
	if s.haveReading {
		return s.reading.Percent(), true
	}
	if s.Item != nil && s.Item.RuntimeMinutes > 0 && s.accumulated > 0 {
		runtime := time.Duration(s.Item.RuntimeMinutes) * time.Minute
		return float64(s.accumulated) / float64(runtime), true
	}
	return 0, false
}

// Paused reports whether the player window currently carries a pause marker.
func (s *Session) Paused() bool { return s.paused }

// Fired reports whether the completion was already attempted.
func (s *Session) Fired() bool { return s.fired }

// Snapshot is an immutable copy of session state for status reporting.
type Snapshot struct {
	ID        string
	Title     string
	MediaType titles.MediaType
	Season    int
	Episode   int
	State     State
	Paused    bool
	Percent   float64
	HasPct    bool
	StartedAt time.Time
	CatalogID int64
}

func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		ID:        s.ID,
		Title:     s.Candidate.Name,
		MediaType: s.Candidate.Type,
		Season:    s.Candidate.Season,
		Episode:   s.Candidate.Episode,
		State:     s.State,
		Paused:    s.paused,
		StartedAt: s.StartedAt,
	}
	if s.Item != nil {
		snap.Title = s.Item.Title
		snap.CatalogID = s.Item.CatalogID
	}
	snap.Percent, snap.HasPct = s.Percent()
	return snap
}

func (s *Session) episodeRef() *catalog.EpisodeRef {
	if s.Candidate.Type != titles.MediaEpisode {
		return nil
	}
	return &catalog.EpisodeRef{Season: s.Candidate.Season, Episode: s.Candidate.Episode}
}
