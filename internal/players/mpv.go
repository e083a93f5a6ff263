package players

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"couchlog/internal/config"
)

// MPV reads playback state over mpv's JSON IPC socket. The player must be
// started with --input-ipc-server pointing at the configured path.
type MPV struct {
	socketPath string
	timeout    time.Duration
}

// NewMPV builds the provider from configuration.
func NewMPV(cfg config.Players) *MPV {
	return &MPV{socketPath: cfg.MPVSocket, timeout: time.Duration(cfg.Timeout) * time.Second}
}

// NewMPVAt builds the provider against an explicit socket path.
func NewMPVAt(socketPath string, timeout time.Duration) *MPV {
	return &MPV{socketPath: socketPath, timeout: timeout}
}

func (m *MPV) Name() string { return "mpv" }

func (m *MPV) Matches(processName string) bool {
	if strings.Contains(processName, "mpv") {
		return true
	}
	// Common wrappers that expose the same IPC socket.
	for _, wrapper := range []string{"celluloid", "smplayer", "haruna"} {
		if strings.Contains(processName, wrapper) {
			return true
		}
	}
	return false
}

type mpvCommand struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvResponse struct {
	Data      json.Number `json:"data"`
	Error     string      `json:"error"`
	RequestID int         `json:"request_id"`
}

func (m *MPV) Position(ctx context.Context) (Reading, bool) {
	if m.socketPath == "" {
		return Reading{}, false
	}

	conn, err := net.DialTimeout("unix", m.socketPath, m.timeout)
	if err != nil {
		return Reading{}, false
	}
	defer conn.Close()

	deadline := time.Now().Add(m.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	reader := bufio.NewReader(conn)

	position, ok := m.getProperty(conn, reader, "time-pos", 1)
	if !ok {
		return Reading{}, false
	}
	duration, ok := m.getProperty(conn, reader, "duration", 2)
	if !ok || duration <= 0 {
		return Reading{}, false
	}

	return Reading{
		Position: time.Duration(position * float64(time.Second)),
		Duration: time.Duration(duration * float64(time.Second)),
	}, true
}

func (m *MPV) getProperty(conn net.Conn, reader *bufio.Reader, property string, requestID int) (float64, bool) {
	payload, err := json.Marshal(mpvCommand{
		Command:   []any{"get_property", property},
		RequestID: requestID,
	})
	if err != nil {
		return 0, false
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return 0, false
	}

	// mpv interleaves asynchronous events on the same socket. Skip lines
	// until the reply carrying our request id arrives.
	for i := 0; i < 16; i++ {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return 0, false
		}
		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.RequestID != requestID {
			continue
		}
		if resp.Error != "success" {
			return 0, false
		}
		value, err := resp.Data.Float64()
		if err != nil {
			return 0, false
		}
		return value, true
	}
	return 0, false
}
