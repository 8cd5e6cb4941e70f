// Package replicateprovider adapts the Replicate predictions client to the
// Provider contract. Every call needs an explicit model from the manifest.
package replicateprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spriteforge/internal/providers"
	"spriteforge/internal/services"
	"spriteforge/internal/services/replicate"
)

// ID is the provider id used in manifests.
const ID = "replicate"

// Predictor creates a prediction and waits for its terminal state.
type Predictor interface {
	Run(ctx context.Context, model, version string, input map[string]any, timeout time.Duration) (replicate.Prediction, error)
}

// Provider runs capabilities on Replicate.
type Provider struct {
	client Predictor
}

// New wraps client.
func New(client Predictor) *Provider {
	return &Provider{client: client}
}

func (p *Provider) ID() string { return ID }

// Supports reports the generation and segmentation capabilities.
func (p *Provider) Supports(capability providers.Capability) bool {
	switch capability {
	case providers.CapabilityStylize, providers.CapabilityTurnaround,
		providers.CapabilityAction, providers.CapabilitySegment:
		return true
	default:
		return false
	}
}

// Run creates the prediction and normalizes its output. For segment.mask the
// output URLs are reported as both images and masks.
func (p *Provider) Run(ctx context.Context, call providers.Call) (providers.Result, error) {
	model := strings.TrimSpace(call.Model)
	if model == "" {
		return providers.Result{}, services.Wrap(services.ErrConfiguration, ID, string(call.Capability),
			"model is required; set capabilities."+string(call.Capability)+".model in the manifest", nil)
	}
	pred, err := p.client.Run(ctx, model, call.Version, buildInput(call), call.Timeout)
	if err != nil {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability), model, err)
	}
	urls, err := pred.OutputURLs()
	if err != nil {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability), model, err)
	}
	if len(urls) == 0 && call.Capability != providers.CapabilitySegment {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability),
			fmt.Sprintf("prediction %s returned no output", pred.ID), nil)
	}

	result := providers.Result{}
	for _, u := range urls {
		result.Images = append(result.Images, providers.Image{URL: u})
	}
	if call.Capability == providers.CapabilitySegment {
		result.Masks = append([]providers.Image(nil), result.Images...)
	}
	result.Raw, _ = json.Marshal(pred)
	return result, nil
}

func buildInput(call providers.Call) map[string]any {
	input := map[string]any{}
	if call.Prompt != "" {
		input["prompt"] = call.Prompt
	}
	if call.NegativePrompt != "" {
		input["negative_prompt"] = call.NegativePrompt
	}
	if call.Seed != 0 {
		input["seed"] = call.Seed
	}
	if call.Strength > 0 {
		input["prompt_strength"] = call.Strength
	}
	if call.ImageURL != "" {
		input["image"] = call.ImageURL
	}
	if call.ControlImageURL != "" {
		input["control_image"] = call.ControlImageURL
	}
	if len(call.ReferenceImageURLs) > 0 {
		input["reference_images"] = call.ReferenceImageURLs
	}
	if call.Size != nil && call.Size.Width > 0 && call.Size.Height > 0 {
		input["width"] = call.Size.Width
		input["height"] = call.Size.Height
	}
	return input
}
