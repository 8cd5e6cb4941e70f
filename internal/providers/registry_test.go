package providers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"spriteforge/internal/providers"
	"spriteforge/internal/services"
)

type stubProvider struct {
	id       string
	supports map[providers.Capability]bool
	calls    []providers.Call
	result   providers.Result
	err      error
}

func (s *stubProvider) ID() string { return s.id }

func (s *stubProvider) Supports(c providers.Capability) bool {
	if s.supports == nil {
		return true
	}
	return s.supports[c]
}

func (s *stubProvider) Run(_ context.Context, call providers.Call) (providers.Result, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return providers.Result{}, s.err
	}
	if s.result.Images == nil && s.result.Masks == nil {
		return providers.Result{Images: []providers.Image{{URL: "data:" + s.id}}}, nil
	}
	return s.result, nil
}

func testManifest() providers.Manifest {
	return providers.Manifest{
		Version:  1,
		Defaults: providers.ManifestDefaults{Provider: "alpha", TimeoutMs: 30000},
		Capabilities: map[string]providers.CapabilityEntry{
			"generate.action": {Provider: "beta", EndpointID: "beta/action", Model: "owner/model", Version: "v9"},
			"segment.mask":    {EndpointID: "alpha/mask", TimeoutMs: 5000},
		},
	}
}

func TestResolvePrecedence(t *testing.T) {
	alpha := &stubProvider{id: "alpha"}
	beta := &stubProvider{id: "beta"}
	gamma := &stubProvider{id: "gamma"}
	reg, err := providers.NewRegistry(testManifest(), alpha, beta, gamma)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	cases := []struct {
		name       string
		capability providers.Capability
		override   string
		hint       string
		want       string
		source     string
	}{
		{"override wins", providers.CapabilityAction, "gamma", "alpha", "gamma", providers.SourceOverride},
		{"hint beats entry", providers.CapabilityAction, "", "gamma", "gamma", providers.SourceHint},
		{"entry beats default", providers.CapabilityAction, "", "", "beta", providers.SourceCapability},
		{"entry without provider inherits default", providers.CapabilitySegment, "", "", "alpha", providers.SourceDefault},
		{"undeclared capability uses default", providers.CapabilityStylize, "", "", "alpha", providers.SourceDefault},
	}
	for _, tc := range cases {
		route, err := reg.Resolve(tc.capability, tc.override, tc.hint)
		if err != nil {
			t.Fatalf("%s: Resolve returned error: %v", tc.name, err)
		}
		if route.Provider != tc.want || route.Source != tc.source {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.name, route.Provider, route.Source, tc.want, tc.source)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	limited := &stubProvider{id: "alpha", supports: map[providers.Capability]bool{providers.CapabilityStylize: true}}
	reg, err := providers.NewRegistry(testManifest(), limited)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	_, err = reg.Resolve(providers.CapabilityAction, "", "")
	if err == nil || !strings.Contains(err.Error(), "provider not registered") || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected not registered configuration error, got %v", err)
	}

	_, err = reg.Resolve(providers.CapabilitySegment, "", "")
	if err == nil || !strings.Contains(err.Error(), "provider does not support capability") || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected unsupported capability error, got %v", err)
	}
}

func TestResolveTrimsManifestProviders(t *testing.T) {
	manifest := providers.Manifest{
		Version:      1,
		Defaults:     providers.ManifestDefaults{Provider: " alpha\t"},
		Capabilities: map[string]providers.CapabilityEntry{"generate.action": {Provider: " beta "}},
	}
	reg, err := providers.NewRegistry(manifest, &stubProvider{id: "alpha"}, &stubProvider{id: "beta"})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	for capability, want := range map[providers.Capability]string{
		providers.CapabilityAction:  "beta",
		providers.CapabilityStylize: "alpha",
	} {
		route, err := reg.Resolve(capability, "", "")
		if err != nil {
			t.Fatalf("%s: %v", capability, err)
		}
		if route.Provider != want {
			t.Fatalf("%s routed to %q, want %q", capability, route.Provider, want)
		}
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	if _, err := providers.NewRegistry(testManifest(), &stubProvider{id: "alpha"}, &stubProvider{id: "alpha"}); err == nil {
		t.Fatal("expected duplicate provider error")
	}
}

func TestRunMergesRoutingMetadata(t *testing.T) {
	alpha := &stubProvider{id: "alpha"}
	beta := &stubProvider{id: "beta"}
	reg, err := providers.NewRegistry(testManifest(), alpha, beta)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	call := providers.Call{Prompt: "walk", EndpointID: "caller-set", Seed: 3}
	if _, route, err := reg.Run(context.Background(), providers.CapabilityAction, call); err != nil {
		t.Fatalf("Run returned error: %v", err)
	} else if route.Provider != "beta" {
		t.Fatalf("unexpected route %+v", route)
	}

	want := providers.Call{
		Capability: providers.CapabilityAction,
		Prompt:     "walk",
		Seed:       3,
		EndpointID: "beta/action",
		Model:      "owner/model",
		Version:    "v9",
		Timeout:    30 * time.Second,
	}
	if diff := cmp.Diff(want, beta.calls[0]); diff != "" {
		t.Fatalf("call mismatch (-want +got):\n%s", diff)
	}

	// Hinted to a different backend: the entry's backend-specific ids are withheld.
	if _, _, err := reg.Run(context.Background(), providers.CapabilityAction, providers.Call{ProviderHint: "alpha"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := alpha.calls[0]
	if got.EndpointID != "" || got.Model != "" || got.Timeout != 30*time.Second {
		t.Fatalf("unexpected metadata on rerouted call: %+v", got)
	}
}

func TestRunEmptyImages(t *testing.T) {
	empty := &stubProvider{id: "alpha", result: providers.Result{Masks: []providers.Image{}}}
	reg, err := providers.NewRegistry(providers.Manifest{Defaults: providers.ManifestDefaults{Provider: "alpha"}}, empty)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	_, _, err = reg.Run(context.Background(), providers.CapabilityTurnaround, providers.Call{})
	if err == nil || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for empty images, got %v", err)
	}
	if _, _, err := reg.Run(context.Background(), providers.CapabilitySegment, providers.Call{}); err != nil {
		t.Fatalf("segment.mask may return no images, got %v", err)
	}
}

func TestRunPropagatesProviderError(t *testing.T) {
	boom := errors.New("upstream 500")
	reg, err := providers.NewRegistry(providers.Manifest{Defaults: providers.ManifestDefaults{Provider: "alpha"}}, &stubProvider{id: "alpha", err: boom})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	if _, _, err := reg.Run(context.Background(), providers.CapabilityStylize, providers.Call{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRoutesListsKnownAndDeclaredCapabilities(t *testing.T) {
	m := testManifest()
	m.Capabilities["upscale.x2"] = providers.CapabilityEntry{Provider: "missing"}
	reg, err := providers.NewRegistry(m, &stubProvider{id: "alpha"}, &stubProvider{id: "beta"})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	routes := reg.Routes()
	var ids []string
	for _, r := range routes {
		ids = append(ids, string(r.Capability))
	}
	want := []string{"generate.action", "generate.stylize", "generate.turnaround", "segment.mask", "upscale.x2"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("routes mismatch (-want +got):\n%s", diff)
	}
	if routes[4].Err == nil {
		t.Fatal("expected resolution error for unregistered provider")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "models.json")
	if err := os.WriteFile(good, []byte(`{
  "version": 1,
  "defaults": {"provider": "placeholder", "timeoutMs": 1000},
  "capabilities": {"segment.mask": {"provider": "fal", "endpointId": "fal-ai/birefnet", "notes": "bg removal"}}
}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := providers.LoadManifest(good)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	entry := m.Entry(providers.CapabilitySegment)
	if entry.Provider != "fal" || entry.EndpointID != "fal-ai/birefnet" || entry.Timeout() != time.Second {
		t.Fatalf("unexpected entry %+v", entry)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":1,"defaults":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := providers.LoadManifest(bad); err == nil || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing default provider, got %v", err)
	}

	if _, err := providers.LoadRegistry(filepath.Join(dir, "missing.json")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing manifest, got %v", err)
	}
}
