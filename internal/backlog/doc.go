// Package backlog persists completions that could not be reported to the
// catalog service, so they survive daemon restarts and are replayed once
// connectivity returns.
package backlog
