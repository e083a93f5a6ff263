// Package players queries local media players for playback position and
// duration. Each provider speaks one player's control interface; the
// registry routes a focused window's process name to the matching provider.
// A miss is normal and never an error, progress falls back to wall-clock
// accumulation.
package players
