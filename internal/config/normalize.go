package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeFal()
	c.normalizeReplicate()
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
	if strings.TrimSpace(c.Paths.PipelinesDir) == "" {
		c.Paths.PipelinesDir = defaultPipelinesDir
	}
	if c.Paths.PipelinesDir, err = expandPath(c.Paths.PipelinesDir); err != nil {
		return fmt.Errorf("paths.pipelines_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		c.Paths.ManifestPath = defaultManifestPath
	}
	if c.Paths.ManifestPath, err = expandPath(c.Paths.ManifestPath); err != nil {
		return fmt.Errorf("paths.manifest_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
}

func (c *Config) normalizeFal() {
	c.Fal.APIKey = strings.TrimSpace(c.Fal.APIKey)
	if c.Fal.APIKey == "" {
		if value, ok := os.LookupEnv("FAL_KEY"); ok {
			c.Fal.APIKey = strings.TrimSpace(value)
		}
	}
	c.Fal.QueueURL = strings.TrimRight(strings.TrimSpace(c.Fal.QueueURL), "/")
	if c.Fal.QueueURL == "" {
		c.Fal.QueueURL = defaultFalQueueURL
	}
	if c.Fal.PollIntervalMillis <= 0 {
		c.Fal.PollIntervalMillis = defaultFalPollIntervalMillis
	}
	if c.Fal.RequestTimeoutSeconds <= 0 {
		c.Fal.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeReplicate() {
	c.Replicate.APIToken = strings.TrimSpace(c.Replicate.APIToken)
	if c.Replicate.APIToken == "" {
		if value, ok := os.LookupEnv("REPLICATE_API_TOKEN"); ok {
			c.Replicate.APIToken = strings.TrimSpace(value)
		}
	}
	c.Replicate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Replicate.BaseURL), "/")
	if c.Replicate.BaseURL == "" {
		c.Replicate.BaseURL = defaultReplicateBaseURL
	}
	if c.Replicate.RequestTimeoutSeconds <= 0 {
		c.Replicate.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
