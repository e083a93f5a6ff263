package players

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"couchlog/internal/config"
)

// MPC reads playback state from the MPC-HC/MPC-BE web interface
// (variables.html). Position and duration are reported in milliseconds.
type MPC struct {
	baseURL    string
	httpClient *http.Client
}

// NewMPC builds the provider from configuration.
func NewMPC(cfg config.Players) *MPC {
	return &MPC{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.MPCPort),
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// NewMPCAt builds the provider against an explicit base URL.
func NewMPCAt(baseURL string, timeout time.Duration) *MPC {
	return &MPC{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (m *MPC) Name() string { return "mpc" }

func (m *MPC) Matches(processName string) bool {
	return strings.Contains(processName, "mpc-hc") || strings.Contains(processName, "mpc-be")
}

var mpcVariablePattern = regexp.MustCompile(`<p id="(position|duration)">(\d+)</p>`)

func (m *MPC) Position(ctx context.Context) (Reading, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/variables.html", nil)
	if err != nil {
		return Reading{}, false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Reading{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Reading{}, false
	}

	var positionMS, durationMS int64
	for _, match := range mpcVariablePattern.FindAllStringSubmatch(string(body), -1) {
		value, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			continue
		}
		switch match[1] {
		case "position":
			positionMS = value
		case "duration":
			durationMS = value
		}
	}
	if durationMS <= 0 {
		return Reading{}, false
	}

	return Reading{
		Position: time.Duration(positionMS) * time.Millisecond,
		Duration: time.Duration(durationMS) * time.Millisecond,
	}, true
}
