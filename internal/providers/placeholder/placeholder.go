// Package placeholder implements a deterministic, fully offline provider. It
// renders labelled rasters locally, so pipelines can be exercised without any
// backend credentials.
package placeholder

import (
	"context"
	"encoding/json"
	"fmt"

	"spriteforge/internal/imaging"
	"spriteforge/internal/providers"
)

// ID is the provider id used in manifests.
const ID = "placeholder"

const defaultSize = 256

// Provider renders placeholder images for every capability.
type Provider struct{}

// New returns the placeholder provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) ID() string { return ID }

// Supports reports true for every capability.
func (p *Provider) Supports(providers.Capability) bool { return true }

// Run renders one raster sized from the call. segment.mask additionally
// yields a circular mask of the same size.
func (p *Provider) Run(ctx context.Context, call providers.Call) (providers.Result, error) {
	if err := ctx.Err(); err != nil {
		return providers.Result{}, err
	}
	width, height := defaultSize, defaultSize
	if call.Size != nil && call.Size.Width > 0 && call.Size.Height > 0 {
		width, height = call.Size.Width, call.Size.Height
	}

	img := imaging.Placeholder(width, height, string(call.Capability), call.Seed)
	url, err := imaging.EncodeDataURL(img)
	if err != nil {
		return providers.Result{}, fmt.Errorf("placeholder: %w", err)
	}
	result := providers.Result{
		Images: []providers.Image{{URL: url, Width: width, Height: height}},
	}
	if call.Capability == providers.CapabilitySegment {
		maskURL, err := imaging.EncodeDataURL(imaging.CircleMask(width, height))
		if err != nil {
			return providers.Result{}, fmt.Errorf("placeholder: %w", err)
		}
		result.Masks = []providers.Image{{URL: maskURL, Width: width, Height: height}}
	}
	result.Raw, _ = json.Marshal(map[string]any{
		"provider":   ID,
		"capability": call.Capability,
		"seed":       call.Seed,
		"width":      width,
		"height":     height,
	})
	return result, nil
}
