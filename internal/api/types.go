package api

import "time"

// SessionStatus describes the active scrobble session.
type SessionStatus struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	MediaType  string    `json:"media_type"`
	Season     int       `json:"season,omitempty"`
	Episode    int       `json:"episode,omitempty"`
	State      string    `json:"state"`
	Paused     bool      `json:"paused"`
	Percent    float64   `json:"percent"`
	HasPercent bool      `json:"has_percent"`
	CatalogID  int64     `json:"catalog_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// BacklogEntry is a queued offline completion.
type BacklogEntry struct {
	ID           int64     `json:"id"`
	CatalogID    int64     `json:"catalog_id"`
	MediaType    string    `json:"media_type"`
	Title        string    `json:"title"`
	Year         int       `json:"year,omitempty"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	WatchedAt    time.Time `json:"watched_at"`
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryRecord is one reported completion.
type HistoryRecord struct {
	ID        int64     `json:"id"`
	CatalogID int64     `json:"catalog_id"`
	MediaType string    `json:"media_type"`
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
	WatchedAt time.Time `json:"watched_at"`
	Source    string    `json:"source"`
}

// FlushResult summarizes a backlog flush.
type FlushResult struct {
	Succeeded           int `json:"succeeded"`
	Failed              int `json:"failed"`
	PermanentlyRejected int `json:"permanently_rejected"`
}
