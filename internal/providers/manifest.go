package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"spriteforge/internal/services"
)

// Manifest is the declarative capability routing table.
type Manifest struct {
	Version      int                        `json:"version"`
	Defaults     ManifestDefaults           `json:"defaults"`
	Capabilities map[string]CapabilityEntry `json:"capabilities"`
}

// ManifestDefaults apply to every capability without its own value.
type ManifestDefaults struct {
	Provider  string `json:"provider"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// CapabilityEntry routes one capability to a backend.
type CapabilityEntry struct {
	Provider   string `json:"provider,omitempty"`
	EndpointID string `json:"endpointId,omitempty"`
	Model      string `json:"model,omitempty"`
	Version    string `json:"version,omitempty"`
	Notes      string `json:"notes,omitempty"`
	TimeoutMs  int    `json:"timeoutMs,omitempty"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "manifest", "open", path, err)
	}
	defer f.Close()
	manifest, err := ParseManifest(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(r io.Reader) (Manifest, error) {
	var manifest Manifest
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "manifest", "parse", "", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate checks the manifest invariants.
func (m Manifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Defaults.Provider) == "" {
		errs = append(errs, errors.New("defaults.provider is required"))
	}
	if m.Defaults.TimeoutMs < 0 {
		errs = append(errs, errors.New("defaults.timeoutMs must not be negative"))
	}
	for id, entry := range m.Capabilities {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, errors.New("capability id must not be empty"))
		}
		if entry.TimeoutMs < 0 {
			errs = append(errs, fmt.Errorf("capabilities.%s.timeoutMs must not be negative", id))
		}
	}
	if len(errs) > 0 {
		return services.Wrap(services.ErrConfiguration, "manifest", "validate", "", errors.Join(errs...))
	}
	return nil
}

// Entry returns the routing entry for capability with defaults applied and
// the provider id trimmed.
func (m Manifest) Entry(capability Capability) CapabilityEntry {
	entry := m.Capabilities[string(capability)]
	entry.Provider = strings.TrimSpace(entry.Provider)
	if entry.Provider == "" {
		entry.Provider = strings.TrimSpace(m.Defaults.Provider)
	}
	if entry.TimeoutMs == 0 {
		entry.TimeoutMs = m.Defaults.TimeoutMs
	}
	return entry
}

// Timeout converts the entry timeout; zero means none.
func (e CapabilityEntry) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}
