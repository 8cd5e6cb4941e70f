package preflight

import (
	"context"

	"spriteforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Credential checks run only when the manifest loads and follow the provider
// hint when one is given.
func RunAll(ctx context.Context, cfg *config.Config, hint string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckPipelines(cfg.Paths.PipelinesDir))

	manifestResult, manifest := CheckManifest(cfg.Paths.ManifestPath)
	results = append(results, manifestResult)
	if manifest != nil {
		results = append(results, CheckCredentials(ctx, cfg, *manifest, hint)...)
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
