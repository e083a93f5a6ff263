package players

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"couchlog/internal/config"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisObjectPath  = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	dbusListNames    = "org.freedesktop.DBus.ListNames"
	mprisLengthKey   = "mpris:length"
)

// MPRIS reads playback state from any player exposing the MPRIS D-Bus
// interface. It acts as the catch-all provider on desktop Linux.
type MPRIS struct {
	timeout time.Duration

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRIS builds the provider from configuration.
func NewMPRIS(cfg config.Players) *MPRIS {
	return &MPRIS{timeout: time.Duration(cfg.Timeout) * time.Second}
}

func (m *MPRIS) Name() string { return "mpris" }

// Matches always reports true. MPRIS bus names carry the player identity, so
// the match happens against the bus instead of the process name.
func (m *MPRIS) Matches(string) bool { return true }

func (m *MPRIS) bus() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	m.conn = conn
	return conn, nil
}

func (m *MPRIS) Position(ctx context.Context) (Reading, bool) {
	conn, err := m.bus()
	if err != nil {
		return Reading{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, dbusListNames, 0).Store(&names); err != nil {
		return Reading{}, false
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		reading, ok := m.query(ctx, conn, name)
		if ok {
			return reading, true
		}
	}
	return Reading{}, false
}

func (m *MPRIS) query(ctx context.Context, conn *dbus.Conn, busName string) (Reading, bool) {
	obj := conn.Object(busName, dbus.ObjectPath(mprisObjectPath))

	var positionVariant dbus.Variant
	if err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0,
		mprisPlayerIface, "Position").Store(&positionVariant); err != nil {
		return Reading{}, false
	}
	position, ok := microseconds(positionVariant)
	if !ok {
		return Reading{}, false
	}

	var metadataVariant dbus.Variant
	if err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0,
		mprisPlayerIface, "Metadata").Store(&metadataVariant); err != nil {
		return Reading{}, false
	}
	metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
	if !ok {
		return Reading{}, false
	}

	lengthVariant, ok := metadata[mprisLengthKey]
	if !ok {
		return Reading{}, false
	}
	length, ok := microseconds(lengthVariant)
	if !ok || length <= 0 {
		return Reading{}, false
	}

	// MPRIS reports microseconds.
	return Reading{
		Position: time.Duration(position) * time.Microsecond,
		Duration: time.Duration(length) * time.Microsecond,
	}, true
}

func microseconds(variant dbus.Variant) (int64, bool) {
	switch value := variant.Value().(type) {
	case int64:
		return value, true
	case uint64:
		return int64(value), true
	case int32:
		return int64(value), true
	case uint32:
		return int64(value), true
	case float64:
		return int64(value), true
	default:
		return 0, false
	}
}
