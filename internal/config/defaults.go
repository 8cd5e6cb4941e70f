package config

const (
	defaultConfigPath            = "~/.config/spriteforge/config.toml"
	defaultDataDir               = "~/.local/share/spriteforge"
	defaultPipelinesDir          = "~/.config/spriteforge/pipelines"
	defaultManifestPath          = "~/.config/spriteforge/models.json"
	defaultLogDir                = "~/.local/share/spriteforge/logs"
	defaultBaseURL               = "http://127.0.0.1:8787"
	defaultFalQueueURL           = "https://queue.fal.run"
	defaultFalPollIntervalMillis = 500
	defaultReplicateBaseURL      = "https://api.replicate.com"
	defaultRequestTimeoutSeconds = 60
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			PipelinesDir: defaultPipelinesDir,
			ManifestPath: defaultManifestPath,
			LogDir:       defaultLogDir,
		},
		Server: Server{
			BaseURL: defaultBaseURL,
		},
		Fal: Fal{
			QueueURL:              defaultFalQueueURL,
			PollIntervalMillis:    defaultFalPollIntervalMillis,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Replicate: Replicate{
			BaseURL:               defaultReplicateBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
