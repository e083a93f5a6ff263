// Package notifications delivers scrobble events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each event verb can be toggled individually, and the
// session-started verb only fires while the catalog service is unreachable,
// so routine online tracking stays quiet.
//
// Extend this package if you need alternative transports; all daemon code
// depends only on the simple Service interface.
package notifications
