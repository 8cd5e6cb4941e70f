package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"spriteforge/internal/config"
	"spriteforge/internal/logging"
	"spriteforge/internal/providers"
	"spriteforge/internal/providers/falprovider"
	"spriteforge/internal/providers/placeholder"
	"spriteforge/internal/providers/replicateprovider"
	"spriteforge/internal/services/fal"
	"spriteforge/internal/services/replicate"
	"spriteforge/internal/storage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// store opens the job store rooted at the configured data directory.
func (c *commandContext) store() (*storage.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Paths.DataDir, cfg.Server.BaseURL)
}

// registry loads the manifest and registers every built-in provider. Network
// backends are registered even without credentials so routing stays visible;
// calls fail at the backend with an authentication error instead.
func (c *commandContext) registry() (*providers.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	falClient := fal.NewClient(fal.Config{
		APIKey:         cfg.Fal.APIKey,
		QueueURL:       cfg.Fal.QueueURL,
		PollInterval:   time.Duration(cfg.Fal.PollIntervalMillis) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Fal.RequestTimeoutSeconds) * time.Second,
	})
	replicateClient := replicate.NewClient(replicate.Config{
		APIToken:       cfg.Replicate.APIToken,
		BaseURL:        cfg.Replicate.BaseURL,
		RequestTimeout: time.Duration(cfg.Replicate.RequestTimeoutSeconds) * time.Second,
	})
	return providers.LoadRegistry(cfg.Paths.ManifestPath,
		placeholder.New(),
		falprovider.New(falClient),
		replicateprovider.New(replicateClient),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
