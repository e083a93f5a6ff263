// Package api defines the DTOs shared by the IPC surface and the CLI, plus
// converters from the internal domain types. Keeping the wire shapes here
// lets the daemon internals evolve without breaking CLI output.
package api
