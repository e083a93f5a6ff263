package backlog

import (
	"time"

	"couchlog/internal/titles"
)

// maxAttempts caps replay attempts for failures that are not network
// failures. Network failures never consume an attempt.
const maxAttempts = 5

// Entry is a completion waiting to be reported. CatalogID 0 means the title
// was never resolved (the service was unreachable at completion time); such
// entries are re-resolved from Title at flush time.
type Entry struct {
	ID           int64
	CatalogID    int64
	MediaType    titles.MediaType
	Title        string
	Year         int
	Season       int
	Episode      int
	WatchedAt    time.Time
	AttemptCount int
	LastError    string
	CreatedAt    time.Time
}

// FlushReport summarizes one replay pass over the backlog.
type FlushReport struct {
	Succeeded           int
	Failed              int
	PermanentlyRejected int
}

// Total returns the number of entries the pass touched.
func (r FlushReport) Total() int {
	return r.Succeeded + r.Failed + r.PermanentlyRejected
}
