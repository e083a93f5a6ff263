package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSimkl()
	c.normalizeScrobble()
	c.normalizePlayers()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSimkl() {
	c.Simkl.ClientID = strings.TrimSpace(c.Simkl.ClientID)
	c.Simkl.AccessToken = strings.TrimSpace(c.Simkl.AccessToken)
	c.Simkl.BaseURL = strings.TrimRight(strings.TrimSpace(c.Simkl.BaseURL), "/")
	if c.Simkl.BaseURL == "" {
		c.Simkl.BaseURL = defaultSimklBaseURL
	}
	if c.Simkl.RequestTimeout <= 0 {
		c.Simkl.RequestTimeout = defaultSimklTimeout
	}
}

func (c *Config) normalizeScrobble() {
	if c.Scrobble.CompletionThreshold == 0 {
		c.Scrobble.CompletionThreshold = defaultCompletionThreshold
	}
	if c.Scrobble.PollInterval <= 0 {
		c.Scrobble.PollInterval = defaultPollInterval
	}
	if c.Scrobble.ResolveCooldown <= 0 {
		c.Scrobble.ResolveCooldown = defaultResolveCooldown
	}
	if c.Scrobble.BacklogFlushMinutes <= 0 {
		c.Scrobble.BacklogFlushMinutes = defaultBacklogFlushMinutes
	}
}

func (c *Config) normalizePlayers() {
	if c.Players.VLCPort <= 0 {
		c.Players.VLCPort = defaultVLCPort
	}
	if c.Players.MPCPort <= 0 {
		c.Players.MPCPort = defaultMPCPort
	}
	if strings.TrimSpace(c.Players.MPVSocket) == "" {
		c.Players.MPVSocket = defaultMPVSocket
	}
	if c.Players.Timeout <= 0 {
		c.Players.Timeout = defaultPlayerTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// applyEnvOverrides layers COUCHLOG_* environment variables over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COUCHLOG_SIMKL_CLIENT_ID"); v != "" {
		c.Simkl.ClientID = v
	}
	if v := os.Getenv("COUCHLOG_SIMKL_ACCESS_TOKEN"); v != "" {
		c.Simkl.AccessToken = v
	}
	if v := os.Getenv("COUCHLOG_COMPLETION_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scrobble.CompletionThreshold = parsed
		}
	}
	if v := os.Getenv("COUCHLOG_POLL_INTERVAL"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.Scrobble.PollInterval = parsed
		}
	}
}
