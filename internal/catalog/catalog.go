package catalog

import (
	"context"
	"errors"
	"fmt"

	"couchlog/internal/titles"
)

// ResolvedItem is a candidate confirmed against the remote catalog.
// Immutable once fetched.
type ResolvedItem struct {
	CatalogID      int64             `json:"catalog_id"`
	Title          string            `json:"title"`
	MediaType      titles.MediaType  `json:"media_type"`
	Year           int               `json:"year,omitempty"`
	RuntimeMinutes int               `json:"runtime_minutes,omitempty"`
	TotalEpisodes  int               `json:"total_episodes,omitempty"`
}

// EpisodeRef identifies a single episode of a show.
type EpisodeRef struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// Resolver resolves candidates against the remote catalog and reports
// watched items to it.
type Resolver interface {
	// Resolve searches the catalog for the candidate. ErrNotFound and
	// ErrAmbiguous are non-fatal: the caller keeps the session unresolved
	// and retries after a cooldown.
	Resolve(ctx context.Context, cand titles.Candidate) (*ResolvedItem, error)
	// MarkWatched reports a completed watch. Failures are *MarkError values
	// classified by kind; only network failures should be queued for retry.
	MarkWatched(ctx context.Context, item *ResolvedItem, episode *EpisodeRef) error
}

// Resolution failures that leave the session unresolved.
var (
	ErrNotFound  = errors.New("catalog: no match for candidate")
	ErrAmbiguous = errors.New("catalog: multiple equally plausible matches")
)

// FailureKind classifies mark-watched failures.
type FailureKind string

const (
	// FailureNetwork covers unreachable-service and transient server errors;
	// the only kind that routes to the offline backlog.
	FailureNetwork FailureKind = "network"
	// FailureAuth means the credential was rejected; surfaced to the user,
	// never retried into the backlog.
	FailureAuth FailureKind = "auth"
	// FailureRejected means the server permanently refused the item.
	FailureRejected FailureKind = "rejected"
	// FailureUnknown covers everything else.
	FailureUnknown FailureKind = "unknown"
)

// MarkError is a classified mark-watched failure.
type MarkError struct {
	Kind FailureKind
	Err  error
}

func (e *MarkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mark watched failed (%s)", e.Kind)
	}
	return fmt.Sprintf("mark watched failed (%s): %v", e.Kind, e.Err)
}

func (e *MarkError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error returned by MarkWatched.
// Unclassified errors report FailureUnknown.
func KindOf(err error) FailureKind {
	var markErr *MarkError
	if errors.As(err, &markErr) {
		return markErr.Kind
	}
	return FailureUnknown
}

// Retryable reports whether a mark-watched failure should be queued for a
// later flush instead of being dropped.
func Retryable(err error) bool {
	return KindOf(err) == FailureNetwork
}
