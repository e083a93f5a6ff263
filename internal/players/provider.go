package players

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"couchlog/internal/config"
	"couchlog/internal/logging"
)

// Reading is one position sample from a player.
type Reading struct {
	Position time.Duration
	Duration time.Duration
}

// Valid reports whether the sample is usable for progress math.
func (r Reading) Valid() bool {
	return r.Duration > 0 && r.Position >= 0 && r.Position <= r.Duration
}

// Percent returns playback progress in [0, 1].
func (r Reading) Percent() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Position) / float64(r.Duration)
}

// Provider reads position data from one player's control interface.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Matches reports whether the provider handles the given process name.
	Matches(processName string) bool
	// Position fetches a sample. ok is false when the player's interface is
	// unreachable or returned nothing usable.
	Position(ctx context.Context) (Reading, bool)
}

// Registry dispatches position queries to the provider matching a process
// name.
type Registry struct {
	providers []Provider
	logger    *slog.Logger
}

// NewRegistry builds the default provider set from configuration.
func NewRegistry(cfg config.Players, logger *slog.Logger) *Registry {
	logger = logging.NewComponentLogger(logger, "players")
	return &Registry{
		providers: []Provider{
			NewVLC(cfg),
			NewMPC(cfg),
			NewMPV(cfg),
			NewMPRIS(cfg),
		},
		logger: logger,
	}
}

// NewRegistryWith builds a registry over an explicit provider list.
func NewRegistryWith(logger *slog.Logger, providers ...Provider) *Registry {
	return &Registry{
		providers: providers,
		logger:    logging.NewComponentLogger(logger, "players"),
	}
}

// Position queries the provider matching processName. ok is false when no
// provider matches or the matching provider has no usable sample.
func (r *Registry) Position(ctx context.Context, processName string) (Reading, bool) {
	name := strings.ToLower(strings.TrimSpace(processName))
	if name == "" {
		return Reading{}, false
	}
	for _, provider := range r.providers {
		if !provider.Matches(name) {
			continue
		}
		reading, ok := provider.Position(ctx)
		if ok && reading.Valid() {
			return reading, true
		}
		// Fall through: another provider may still reach this player, e.g.
		// MPRIS when VLC's HTTP interface is disabled.
		r.logger.Debug("player interface returned no usable sample",
			logging.String("provider", provider.Name()),
			logging.String("process", name))
	}
	return Reading{}, false
}
