package monitor

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"couchlog/internal/scrobbler"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisObjectPath  = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
)

// MPRISSource observes playing media via the session bus. It stands in for
// foreground-window detection on Linux desktops: any player with an active
// MPRIS session counts as the watched window. A paused player is reported
// with a pause marker appended to the title so the parser flags it.
type MPRISSource struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewMPRISSource builds the source. The bus connection is dialed lazily.
func NewMPRISSource() *MPRISSource {
	return &MPRISSource{}
}

func (s *MPRISSource) bus() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

// Observe returns the first playing (or paused) MPRIS player, or an empty
// observation when nothing is active.
func (s *MPRISSource) Observe(ctx context.Context) (scrobbler.Observation, error) {
	conn, err := s.bus()
	if err != nil {
		return scrobbler.Observation{}, err
	}

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return scrobbler.Observation{}, err
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		obs, ok := s.observePlayer(ctx, conn, name)
		if ok {
			return obs, nil
		}
	}
	return scrobbler.Observation{}, nil
}

func (s *MPRISSource) observePlayer(ctx context.Context, conn *dbus.Conn, busName string) (scrobbler.Observation, bool) {
	obj := conn.Object(busName, dbus.ObjectPath(mprisObjectPath))

	var statusVariant dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, "PlaybackStatus").Store(&statusVariant); err != nil {
		return scrobbler.Observation{}, false
	}
	status, _ := statusVariant.Value().(string)
	if status != "Playing" && status != "Paused" {
		return scrobbler.Observation{}, false
	}

	var metadataVariant dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, "Metadata").Store(&metadataVariant); err != nil {
		return scrobbler.Observation{}, false
	}
	metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
	if !ok {
		return scrobbler.Observation{}, false
	}

	title := metadataTitle(metadata)
	if title == "" {
		return scrobbler.Observation{}, false
	}
	if status == "Paused" {
		title += " [Paused]"
	}

	return scrobbler.Observation{
		Title:       title,
		ProcessName: strings.ToLower(strings.TrimPrefix(busName, mprisPrefix)),
	}, true
}

// metadataTitle prefers the URL's file name over xesam:title. Player-supplied
// titles are often prettified and lose the year and episode markers the
// parser needs.
func metadataTitle(metadata map[string]dbus.Variant) string {
	if variant, ok := metadata["xesam:url"]; ok {
		if raw, ok := variant.Value().(string); ok && raw != "" {
			if parsed, err := url.Parse(raw); err == nil {
				if name := path.Base(parsed.Path); name != "" && name != "." && name != "/" {
					if unescaped, err := url.PathUnescape(name); err == nil {
						return unescaped
					}
					return name
				}
			}
		}
	}
	if variant, ok := metadata["xesam:title"]; ok {
		if title, ok := variant.Value().(string); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
