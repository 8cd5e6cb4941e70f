package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateURLs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PipelinesDir) == "" {
		return errors.New("paths.pipelines_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		return errors.New("paths.manifest_path must be set")
	}
	return nil
}

func (c *Config) validateURLs() error {
	for key, value := range map[string]string{
		"server.base_url":    c.Server.BaseURL,
		"fal.queue_url":      c.Fal.QueueURL,
		"replicate.base_url": c.Replicate.BaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
