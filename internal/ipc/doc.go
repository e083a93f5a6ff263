// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
// The CLI is the only intended client; the surface is deliberately small:
// status, backlog inspection and flush, history listing, and stop.
package ipc
