// Package falprovider adapts the fal queue client to the Provider contract.
package falprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"spriteforge/internal/providers"
	"spriteforge/internal/services"
	"spriteforge/internal/services/fal"
)

// ID is the provider id used in manifests.
const ID = "fal"

// Default endpoints used when the manifest names none.
const (
	DefaultSegmentEndpoint  = "fal-ai/birefnet"
	DefaultGenerateEndpoint = "fal-ai/flux/dev/image-to-image"
)

// Subscriber is the blocking queue primitive the provider needs.
type Subscriber interface {
	Subscribe(ctx context.Context, endpoint string, input any, opts fal.SubscribeOptions) (json.RawMessage, error)
}

// Provider runs capabilities on fal.
type Provider struct {
	client Subscriber
}

// New wraps client.
func New(client Subscriber) *Provider {
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

// Run submits the call and waits for its response.
func (p *Provider) Run(ctx context.Context, call providers.Call) (providers.Result, error) {
	endpoint := EndpointFor(call)
	raw, err := p.client.Subscribe(ctx, endpoint, buildInput(call), fal.SubscribeOptions{Timeout: call.Timeout})
	if err != nil {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability), endpoint, err)
	}
	result, err := parseOutput(raw)
	if err != nil {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability), "parse response", err)
	}
	if call.Capability != providers.CapabilitySegment && len(result.Images) == 0 {
		return providers.Result{}, services.Wrap(services.ErrExternalTool, ID, string(call.Capability), fmt.Sprintf("%s returned no images", endpoint), nil)
	}
	return result, nil
}

// EndpointFor returns the call's endpoint or the capability default.
func EndpointFor(call providers.Call) string {
	if endpoint := strings.TrimSpace(call.EndpointID); endpoint != "" {
		return endpoint
	}
	if call.Capability == providers.CapabilitySegment {
		return DefaultSegmentEndpoint
	}
	return DefaultGenerateEndpoint
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
		input["strength"] = call.Strength
	}
	if call.ImageURL != "" {
		input["image_url"] = call.ImageURL
	}
	if call.ControlImageURL != "" {
		input["control_image_url"] = call.ControlImageURL
	}
	if len(call.ReferenceImageURLs) > 0 {
		input["reference_image_urls"] = call.ReferenceImageURLs
	}
	if call.Size != nil && call.Size.Width > 0 && call.Size.Height > 0 {
		input["image_size"] = map[string]int{"width": call.Size.Width, "height": call.Size.Height}
	}
	return input
}

// imageRef accepts either {"url":..., "width":..., "height":...} or a bare URL string.
type imageRef struct {
	providers.Image
}

func (r *imageRef) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		r.URL = url
		return nil
	}
	var obj struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Image = providers.Image{URL: obj.URL, Width: obj.Width, Height: obj.Height}
	return nil
}

type output struct {
	Images []imageRef `json:"images"`
	Image  *imageRef  `json:"image"`
	Mask   *imageRef  `json:"mask"`
	Masks  []imageRef `json:"masks"`
}

func parseOutput(raw json.RawMessage) (providers.Result, error) {
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return providers.Result{}, err
	}
	result := providers.Result{Raw: raw}
	if len(out.Images) > 0 {
		result.Images = collect(out.Images)
	} else if out.Image != nil && out.Image.URL != "" {
		result.Images = []providers.Image{out.Image.Image}
	}
	if out.Mask != nil && out.Mask.URL != "" {
		result.Masks = []providers.Image{out.Mask.Image}
	} else if len(out.Masks) > 0 {
		result.Masks = collect(out.Masks)
	}
	return result, nil
}

func collect(refs []imageRef) []providers.Image {
	images := make([]providers.Image, 0, len(refs))
	for _, ref := range refs {
		if ref.URL != "" {
			images = append(images, ref.Image)
		}
	}
	return images
}
