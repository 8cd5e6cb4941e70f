package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed samples/config.toml
var sampleConfig string

//go:embed samples/models.json
var sampleManifest string

//go:embed samples/pipelines/topdown2d.v1.json
var samplePipeline string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	PipelinesDir string `toml:"pipelines_dir"`
	ManifestPath string `toml:"manifest_path"`
	LogDir       string `toml:"log_dir"`
}

// Server contains the externally visible addressing settings.
type Server struct {
	BaseURL string `toml:"base_url"`
}

// Fal contains credentials and timing for the managed queue backend.
type Fal struct {
	APIKey                string `toml:"api_key"`
	QueueURL              string `toml:"queue_url"`
	PollIntervalMillis    int    `toml:"poll_interval_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Replicate contains credentials for the raw-HTTP predictions backend.
type Replicate struct {
	APIToken              string `toml:"api_token"`
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for spriteforge.
//
// Configuration sections by subsystem:
//   - Paths: job data root, pipeline definitions, model manifest, logs
//   - Server: base URL used when artifacts are addressed externally
//   - Fal: managed queue backend credentials
//   - Replicate: predictions backend credentials
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Server    Server    `toml:"server"`
	Fal       Fal       `toml:"fal"`
	Replicate Replicate `toml:"replicate"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spriteforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	return writeSample(path, sampleConfig)
}

// SampleFile describes one file written by WriteSamples.
type SampleFile struct {
	Path    string
	Written bool
}

// WriteSamples seeds the configured manifest path and pipelines directory with
// the bundled model manifest and topdown2d.v1 pipeline. Existing files are left
// untouched unless overwrite is set.
func (c *Config) WriteSamples(overwrite bool) ([]SampleFile, error) {
	targets := []struct {
		path    string
		content string
	}{
		{c.Paths.ManifestPath, sampleManifest},
		{filepath.Join(c.Paths.PipelinesDir, "topdown2d.v1.json"), samplePipeline},
	}
	results := make([]SampleFile, 0, len(targets))
	for _, target := range targets {
		if !overwrite {
			if _, err := os.Stat(target.path); err == nil {
				results = append(results, SampleFile{Path: target.path})
				continue
			}
		}
		if err := writeSample(target.path, target.content); err != nil {
			return results, err
		}
		results = append(results, SampleFile{Path: target.path, Written: true})
	}
	return results, nil
}

func writeSample(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample %s: %w", path, err)
	}
	return nil
}
