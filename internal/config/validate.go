package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSimkl(); err != nil {
		return err
	}
	if err := c.validateScrobble(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSimkl() error {
	if c.Simkl.ClientID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/couchlog/config.toml"
		}
		return fmt.Errorf("simkl.client_id is required. Set COUCHLOG_SIMKL_CLIENT_ID or edit %s (create with 'couchlog config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateScrobble() error {
	if c.Scrobble.CompletionThreshold <= 0 || c.Scrobble.CompletionThreshold > 1 {
		return errors.New("scrobble.completion_threshold must be in (0, 1]")
	}
	if c.Scrobble.PollInterval < 1 {
		return errors.New("scrobble.poll_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
