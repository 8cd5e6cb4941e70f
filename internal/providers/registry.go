package providers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"spriteforge/internal/services"
)

// Route sources, in precedence order.
const (
	SourceOverride   = "override"
	SourceHint       = "hint"
	SourceCapability = "capability"
	SourceDefault    = "default"
)

// Route is one resolved capability assignment.
type Route struct {
	Capability Capability
	Provider   string
	Source     string
	Entry      CapabilityEntry
}

// Registry routes capability calls to providers.
type Registry struct {
	manifest  Manifest
	providers map[string]Provider
}

// NewRegistry builds a registry over manifest and the given provider instances.
func NewRegistry(manifest Manifest, providers ...Provider) (*Registry, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		manifest:  manifest,
		providers: make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		id := p.ID()
		if _, dup := r.providers[id]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "registry", "register", fmt.Sprintf("duplicate provider %q", id), nil)
		}
		r.providers[id] = p
	}
	return r, nil
}

// LoadRegistry reads the manifest at path once and builds a registry.
func LoadRegistry(path string, providers ...Provider) (*Registry, error) {
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(manifest, providers...)
}

// Manifest returns the parsed routing table.
func (r *Registry) Manifest() Manifest {
	return r.manifest
}

// ProviderIDs lists registered providers in sorted order.
func (r *Registry) ProviderIDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Resolve picks the provider for capability. override beats hint, hint beats
// the manifest capability entry, which beats the manifest default.
func (r *Registry) Resolve(capability Capability, override, hint string) (Route, error) {
	declared := r.manifest.Capabilities[string(capability)]
	entry := r.manifest.Entry(capability)

	route := Route{Capability: capability, Entry: entry}
	switch {
	case strings.TrimSpace(override) != "":
		route.Provider, route.Source = strings.TrimSpace(override), SourceOverride
	case strings.TrimSpace(hint) != "":
		route.Provider, route.Source = strings.TrimSpace(hint), SourceHint
	case strings.TrimSpace(declared.Provider) != "":
		route.Provider, route.Source = entry.Provider, SourceCapability
	default:
		route.Provider, route.Source = entry.Provider, SourceDefault
	}

	provider, ok := r.providers[route.Provider]
	if !ok {
		return route, services.Wrap(services.ErrConfiguration, "registry", "resolve",
			fmt.Sprintf("provider not registered: %s (capability %s)", route.Provider, capability), nil)
	}
	if !provider.Supports(capability) {
		return route, services.Wrap(services.ErrConfiguration, "registry", "resolve",
			fmt.Sprintf("provider does not support capability: %s does not support %s", route.Provider, capability), nil)
	}
	// Backend-specific metadata only applies to the backend the entry names.
	if route.Provider != entry.Provider {
		route.Entry = CapabilityEntry{Provider: route.Provider, TimeoutMs: entry.TimeoutMs}
	}
	return route, nil
}

// Run resolves capability, writes the route metadata into call, and delegates.
// An empty image list is an error for every capability except segment.mask.
func (r *Registry) Run(ctx context.Context, capability Capability, call Call) (Result, Route, error) {
	route, err := r.Resolve(capability, call.Provider, call.ProviderHint)
	if err != nil {
		return Result{}, route, err
	}
	call.Capability = capability
	call.EndpointID = route.Entry.EndpointID
	call.Model = route.Entry.Model
	call.Version = route.Entry.Version
	call.Timeout = route.Entry.Timeout()

	result, err := r.providers[route.Provider].Run(ctx, call)
	if err != nil {
		return Result{}, route, err
	}
	if capability != CapabilitySegment && len(result.Images) == 0 {
		return Result{}, route, services.Wrap(services.ErrExternalTool, "registry", "run",
			fmt.Sprintf("provider %s returned no images for %s", route.Provider, capability), nil)
	}
	return result, route, nil
}

// Routes lists the effective route of every known or declared capability,
// sorted by capability id. Resolution failures are reported per route.
func (r *Registry) Routes() []RouteStatus {
	seen := make(map[Capability]struct{})
	var caps []Capability
	for _, c := range KnownCapabilities() {
		seen[c] = struct{}{}
		caps = append(caps, c)
	}
	for id := range r.manifest.Capabilities {
		c := Capability(id)
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)

	out := make([]RouteStatus, 0, len(caps))
	for _, c := range caps {
		route, err := r.Resolve(c, "", "")
		out = append(out, RouteStatus{Route: route, Err: err})
	}
	return out
}

// RouteStatus pairs a route with its resolution error, if any.
type RouteStatus struct {
	Route
	Err error
}
