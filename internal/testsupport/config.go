package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"spriteforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Backend credentials are cleared so nothing from the host leaks in.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.PipelinesDir = filepath.Join(base, "pipelines")
	cfgVal.Paths.ManifestPath = filepath.Join(base, "models.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Fal.APIKey = ""
	cfgVal.Replicate.APIToken = ""
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSamples writes the bundled model manifest and pipeline definition.
func WithSamples() ConfigOption {
	return func(b *configBuilder) {
		if _, err := b.cfg.WriteSamples(true); err != nil {
			b.t.Fatalf("write samples: %v", err)
		}
	}
}

// WithManifest replaces the model manifest with body.
func WithManifest(body string) ConfigOption {
	return func(b *configBuilder) {
		path := b.cfg.Paths.ManifestPath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir manifest dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			b.t.Fatalf("write manifest: %v", err)
		}
	}
}

// WithFalKey sets the fal API key on the test config.
func WithFalKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fal.APIKey = key
	}
}

// WithReplicate points the Replicate backend at baseURL with token.
func WithReplicate(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Replicate.BaseURL = baseURL
		b.cfg.Replicate.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
