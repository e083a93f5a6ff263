package api

import (
	"couchlog/internal/backlog"
	"couchlog/internal/history"
	"couchlog/internal/scrobbler"
)

// FromSnapshot converts an engine snapshot. Returns nil when idle.
func FromSnapshot(snap *scrobbler.Snapshot) *SessionStatus {
	if snap == nil {
		return nil
	}
	return &SessionStatus{
		ID:         snap.ID,
		Title:      snap.Title,
		MediaType:  string(snap.MediaType),
		Season:     snap.Season,
		Episode:    snap.Episode,
		State:      string(snap.State),
		Paused:     snap.Paused,
		Percent:    snap.Percent,
		HasPercent: snap.HasPct,
		CatalogID:  snap.CatalogID,
		StartedAt:  snap.StartedAt,
	}
}

// FromBacklogEntry converts a backlog entry.
func FromBacklogEntry(entry backlog.Entry) BacklogEntry {
	return BacklogEntry{
		ID:           entry.ID,
		CatalogID:    entry.CatalogID,
		MediaType:    string(entry.MediaType),
		Title:        entry.Title,
		Year:         entry.Year,
		Season:       entry.Season,
		Episode:      entry.Episode,
		WatchedAt:    entry.WatchedAt,
		AttemptCount: entry.AttemptCount,
		LastError:    entry.LastError,
		CreatedAt:    entry.CreatedAt,
	}
}

// FromHistoryRecord converts a history record.
func FromHistoryRecord(record history.Record) HistoryRecord {
	return HistoryRecord{
		ID:        record.ID,
		CatalogID: record.CatalogID,
		MediaType: string(record.MediaType),
		Title:     record.Title,
		Year:      record.Year,
		Season:    record.Season,
		Episode:   record.Episode,
		WatchedAt: record.WatchedAt,
		Source:    string(record.Source),
	}
}

// FromFlushReport converts a flush report.
func FromFlushReport(report backlog.FlushReport) FlushResult {
	return FlushResult{
		Succeeded:           report.Succeeded,
		Failed:              report.Failed,
		PermanentlyRejected: report.PermanentlyRejected,
	}
}
