// Package scrobbler tracks the currently playing title and reports it
// watched exactly once when playback crosses the completion threshold. The
// engine is a passive state machine: the monitor loop feeds it one
// observation per tick and it never blocks between ticks.
package scrobbler
