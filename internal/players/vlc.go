package players

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"couchlog/internal/config"
)

// VLC reads playback state from VLC's HTTP interface (status.json). The
// interface must be enabled with a password in VLC's preferences.
type VLC struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// NewVLC builds the provider from configuration.
func NewVLC(cfg config.Players) *VLC {
	return &VLC{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.VLCPort),
		password:   cfg.VLCPassword,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// NewVLCAt builds the provider against an explicit base URL.
func NewVLCAt(baseURL, password string, timeout time.Duration) *VLC {
	return &VLC{
		baseURL:    strings.TrimRight(baseURL, "/"),
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *VLC) Name() string { return "vlc" }

func (v *VLC) Matches(processName string) bool {
	return strings.Contains(processName, "vlc")
}

type vlcStatus struct {
	Time   float64 `json:"time"`
	Length float64 `json:"length"`
	State  string  `json:"state"`
}

func (v *VLC) Position(ctx context.Context) (Reading, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/requests/status.json", nil)
	if err != nil {
		return Reading{}, false
	}
	// VLC's HTTP interface authenticates with an empty username.
	req.SetBasicAuth("", v.password)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Reading{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, false
	}

	var status vlcStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Reading{}, false
	}
	if status.Length <= 0 || status.State == "stopped" {
		return Reading{}, false
	}

	return Reading{
		Position: time.Duration(status.Time * float64(time.Second)),
		Duration: time.Duration(status.Length * float64(time.Second)),
	}, true
}
