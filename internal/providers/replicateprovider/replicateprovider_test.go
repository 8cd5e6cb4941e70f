package replicateprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spriteforge/internal/providers"
	"spriteforge/internal/services"
	"spriteforge/internal/services/replicate"
)

func TestRunRequiresModel(t *testing.T) {
	_, err := New(replicate.NewClient(replicate.Config{APIToken: "tok"})).Run(context.Background(), providers.Call{Capability: providers.CapabilityStylize})
	if err == nil || !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "model is required") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func newServer(t *testing.T, final map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/models/acme/sprites/predictions":
			var body struct {
				Input map[string]any `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if body.Input["image"] != "https://in/src.png" || body.Input["prompt_strength"] != 0.3 {
				t.Errorf("unexpected input %v", body.Input)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": replicate.StatusStarting})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			_ = json.NewEncoder(w).Encode(final)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunNormalizesOutput(t *testing.T) {
	server := newServer(t, map[string]any{"id": "p1", "status": replicate.StatusSucceeded, "output": "https://out/frame.png"})
	client := replicate.NewClient(replicate.Config{APIToken: "tok", BaseURL: server.URL}, replicate.WithPollInterval(time.Millisecond))
	call := providers.Call{Capability: providers.CapabilityAction, Model: "acme/sprites", ImageURL: "https://in/src.png", Strength: 0.3}

	result, err := New(client).Run(context.Background(), call)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Images) != 1 || result.Images[0].URL != "https://out/frame.png" {
		t.Fatalf("unexpected images %+v", result.Images)
	}
	if len(result.Masks) != 0 {
		t.Fatalf("generation calls should not report masks, got %+v", result.Masks)
	}
}

func TestRunSegmentReportsMasks(t *testing.T) {
	server := newServer(t, map[string]any{"id": "p1", "status": replicate.StatusSucceeded, "output": []string{"https://out/mask.png"}})
	client := replicate.NewClient(replicate.Config{APIToken: "tok", BaseURL: server.URL}, replicate.WithPollInterval(time.Millisecond))
	call := providers.Call{Capability: providers.CapabilitySegment, Model: "acme/sprites", ImageURL: "https://in/src.png", Strength: 0.3}

	result, err := New(client).Run(context.Background(), call)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Masks) != 1 || result.Masks[0].URL != "https://out/mask.png" {
		t.Fatalf("unexpected masks %+v", result.Masks)
	}
}

func TestRunFailedPrediction(t *testing.T) {
	server := newServer(t, map[string]any{"id": "p1", "status": replicate.StatusFailed, "error": "out of memory"})
	client := replicate.NewClient(replicate.Config{APIToken: "tok", BaseURL: server.URL}, replicate.WithPollInterval(time.Millisecond))
	call := providers.Call{Capability: providers.CapabilityTurnaround, Model: "acme/sprites", ImageURL: "https://in/src.png", Strength: 0.3}

	_, err := New(client).Run(context.Background(), call)
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected external tool error with prediction detail, got %v", err)
	}
}
