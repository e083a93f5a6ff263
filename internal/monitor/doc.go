// Package monitor runs the polling loop: observe the focused player window,
// feed the scrobble engine, and periodically flush the offline backlog when
// the catalog service is reachable.
package monitor
