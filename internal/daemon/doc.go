// Package daemon owns the background process lifecycle: single-instance
// locking, starting and stopping the monitor loop, and serving status
// snapshots to the IPC layer.
package daemon
