package ipc

import "couchlog/internal/api"

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports daemon liveness.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime status.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Session       *api.SessionStatus `json:"session"`
	BacklogCount  int                `json:"backlog_count"`
	LastError     string             `json:"last_error,omitempty"`
	BacklogDBPath string             `json:"backlog_db_path"`
	LockPath      string             `json:"lock_path"`
}

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// BacklogListRequest lists pending backlog entries.
type BacklogListRequest struct{}

// BacklogListResponse contains pending backlog entries.
type BacklogListResponse struct {
	Entries []api.BacklogEntry `json:"entries"`
}

// BacklogFlushRequest replays the backlog immediately.
type BacklogFlushRequest struct{}

// BacklogFlushResponse reports the flush outcome.
type BacklogFlushResponse struct {
	Result api.FlushResult `json:"result"`
}

// HistoryListRequest lists recent watch-history records. A non-positive
// limit returns everything.
type HistoryListRequest struct {
	Limit int `json:"limit"`
}

// HistoryListResponse contains watch-history records.
type HistoryListResponse struct {
	Records []api.HistoryRecord `json:"records"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
