package preflight

import (
	"context"
	"slices"
	"strings"

	"spriteforge/internal/config"
	"spriteforge/internal/providers"
	"spriteforge/internal/providers/falprovider"
	"spriteforge/internal/providers/replicateprovider"
)

// RoutedProviders returns the provider ids a run can route to, sorted. A
// non-empty hint wins over every manifest route, so it is the only provider.
// Otherwise the manifest default plus every capability entry is returned.
func RoutedProviders(manifest providers.Manifest, hint string) []string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return []string{hint}
	}
	seen := map[string]bool{}
	if p := strings.TrimSpace(manifest.Defaults.Provider); p != "" {
		seen[p] = true
	}
	for capability := range manifest.Capabilities {
		if p := strings.TrimSpace(manifest.Entry(providers.Capability(capability)).Provider); p != "" {
			seen[p] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CheckCredentials reports one result per network backend. A backend that
// neither the hint nor the manifest routes to passes with "Not routed".
func CheckCredentials(ctx context.Context, cfg *config.Config, manifest providers.Manifest, hint string) []Result {
	routed := RoutedProviders(manifest, hint)
	return []Result{
		CheckFalFromConfig(cfg, slices.Contains(routed, falprovider.ID)),
		CheckReplicateFromConfig(ctx, cfg, slices.Contains(routed, replicateprovider.ID)),
	}
}

// CheckFalFromConfig evaluates fal status from config. fal has no cheap
// authenticated endpoint, so only key presence is checked.
func CheckFalFromConfig(cfg *config.Config, routed bool) Result {
	const name = "fal"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !routed {
		return Result{Name: name, Passed: true, Detail: "Not routed"}
	}
	if strings.TrimSpace(cfg.Fal.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key (set fal.api_key or FAL_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "API key present"}
}

// CheckReplicateFromConfig evaluates Replicate status from config and connectivity.
func CheckReplicateFromConfig(ctx context.Context, cfg *config.Config, routed bool) Result {
	const name = "Replicate"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !routed {
		return Result{Name: name, Passed: true, Detail: "Not routed"}
	}
	if strings.TrimSpace(cfg.Replicate.APIToken) == "" {
		return Result{Name: name, Detail: "Missing API token (set replicate.api_token or REPLICATE_API_TOKEN)"}
	}
	return CheckReplicate(ctx, cfg.Replicate.BaseURL, cfg.Replicate.APIToken)
}
