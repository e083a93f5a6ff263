package config

const (
	defaultDataDir             = "~/.local/share/couchlog"
	defaultLogDir              = "~/.local/share/couchlog/logs"
	defaultSimklBaseURL        = "https://api.simkl.com"
	defaultSimklTimeout        = 5
	defaultCompletionThreshold = 0.80
	defaultPollInterval        = 10
	defaultResolveCooldown     = 60
	defaultBacklogFlushMinutes = 5
	defaultVLCPort             = 8080
	defaultMPCPort             = 13579
	defaultMPVSocket           = "/tmp/mpvsocket"
	defaultPlayerTimeout       = 2
	defaultNtfyTimeout         = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Simkl: Simkl{
			BaseURL:        defaultSimklBaseURL,
			RequestTimeout: defaultSimklTimeout,
		},
		Scrobble: Scrobble{
			CompletionThreshold: defaultCompletionThreshold,
			PollInterval:        defaultPollInterval,
			ResolveCooldown:     defaultResolveCooldown,
			BacklogFlushMinutes: defaultBacklogFlushMinutes,
		},
		Players: Players{
			VLCPort:   defaultVLCPort,
			MPCPort:   defaultMPCPort,
			MPVSocket: defaultMPVSocket,
			Timeout:   defaultPlayerTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			SessionStarted: true,
			Watched:        true,
			Backlog:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
