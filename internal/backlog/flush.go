package backlog

import (
	"context"
	"fmt"
	"log/slog"

	"couchlog/internal/catalog"
	"couchlog/internal/logging"
)

// Marker reports one entry to the catalog service. For entries with
// CatalogID 0 it must resolve the title first. Failures are classified with
// catalog.KindOf.
type Marker func(ctx context.Context, entry Entry) error

// Flush replays pending entries oldest first. Success removes the entry. A
// network failure stops the pass immediately without consuming an attempt,
// since the remaining entries would hit the same dead link. A rejected
// completion is dropped on the spot. Any other failure consumes one of the
// entry's attempts; the entry is dropped after maxAttempts.
func (s *Store) Flush(ctx context.Context, mark Marker, logger *slog.Logger) (FlushReport, error) {
	logger = logging.NewComponentLogger(logger, "backlog")

	var report FlushReport

	entries, err := s.Pending(ctx)
	if err != nil {
		return report, err
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		markErr := mark(ctx, entry)
		if markErr == nil {
			if err := s.Remove(ctx, entry.ID); err != nil {
				return report, err
			}
			report.Succeeded++
			logger.Info("backlog entry reported",
				logging.String(logging.FieldEventType, "backlog_flushed"),
				logging.String(logging.FieldTitle, entry.Title),
				logging.Int64(logging.FieldCatalogID, entry.CatalogID))
			continue
		}

		switch catalog.KindOf(markErr) {
		case catalog.FailureNetwork:
			report.Failed++
			logger.Warn("backlog flush interrupted, service unreachable",
				logging.String(logging.FieldEventType, "backlog_flush_interrupted"),
				logging.String(logging.FieldTitle, entry.Title),
				logging.Error(markErr))
			return report, nil
		case catalog.FailureRejected:
			if err := s.Remove(ctx, entry.ID); err != nil {
				return report, err
			}
			report.PermanentlyRejected++
			logger.Warn("backlog entry rejected by service, dropping",
				logging.String(logging.FieldEventType, "backlog_rejected"),
				logging.String(logging.FieldTitle, entry.Title),
				logging.Error(markErr))
		default:
			attempts := entry.AttemptCount + 1
			if attempts >= maxAttempts {
				if err := s.Remove(ctx, entry.ID); err != nil {
					return report, err
				}
				report.PermanentlyRejected++
				logger.Warn("backlog entry exhausted its attempts, dropping",
					logging.String(logging.FieldEventType, "backlog_exhausted"),
					logging.String(logging.FieldTitle, entry.Title),
					logging.Int("attempt_count", attempts),
					logging.Error(markErr))
				continue
			}
			if err := s.recordAttempt(ctx, entry.ID, attempts, markErr.Error()); err != nil {
				return report, err
			}
			report.Failed++
			logger.Warn("backlog entry failed, will retry",
				logging.String(logging.FieldEventType, "backlog_retry"),
				logging.String(logging.FieldTitle, entry.Title),
				logging.Int("attempt_count", attempts),
				logging.Error(markErr))
		}
	}

	if report.Total() > 0 {
		logger.Info(fmt.Sprintf("backlog flush finished: %d reported, %d pending, %d dropped",
			report.Succeeded, report.Failed, report.PermanentlyRejected),
			logging.String(logging.FieldEventType, "backlog_flush_done"))
	}
	return report, nil
}
