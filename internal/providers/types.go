package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Capability names an abstract generation task.
type Capability string

// Known capabilities requested by the stage runners.
const (
	CapabilityStylize    Capability = "generate.stylize"
	CapabilityTurnaround Capability = "generate.turnaround"
	CapabilityAction     Capability = "generate.action"
	CapabilitySegment    Capability = "segment.mask"
)

// KnownCapabilities lists the capabilities in display order.
func KnownCapabilities() []Capability {
	return []Capability{CapabilityStylize, CapabilityTurnaround, CapabilityAction, CapabilitySegment}
}

// Size is a requested output raster size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Call is one capability invocation. EndpointID, Model, Version, and Timeout
// are routing metadata written by the Registry; callers leave them empty.
type Call struct {
	Capability         Capability
	Prompt             string
	NegativePrompt     string
	ImageURL           string
	Seed               int64
	Strength           float64
	ControlImageURL    string
	ReferenceImageURLs []string
	Size               *Size

	// Provider forces a provider id for this call only.
	Provider string
	// ProviderHint is the job-level provider preference.
	ProviderHint string

	EndpointID string
	Model      string
	Version    string
	Timeout    time.Duration
}

// Image is one produced raster.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Result is the normalized provider output.
type Result struct {
	Images []Image
	Masks  []Image
	Raw    json.RawMessage
}

// Provider executes capabilities against one backend.
type Provider interface {
	ID() string
	Supports(capability Capability) bool
	Run(ctx context.Context, call Call) (Result, error)
}
