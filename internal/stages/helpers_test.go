package stages

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/providers/placeholder"
	"spriteforge/internal/storage"
)

const testBaseURL = "http://127.0.0.1:8787"

// recorder wraps a provider, recording calls, results, and the peak number of
// concurrent calls per capability, and optionally rewriting results.
type recorder struct {
	id    string
	inner providers.Provider

	mu      sync.Mutex
	calls   []providers.Call
	results map[resultKey]providers.Result
	active  map[providers.Capability]int
	peak    map[providers.Capability]int

	// hold keeps each call in flight long enough for siblings to overlap.
	hold   time.Duration
	fail   func(call providers.Call) error
	mutate func(n int, call providers.Call, result providers.Result) providers.Result
}

func newRecorder(id string) *recorder {
	return &recorder{
		id:      id,
		inner:   placeholder.New(),
		results: map[resultKey]providers.Result{},
		active:  map[providers.Capability]int{},
		peak:    map[providers.Capability]int{},
	}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Supports(providers.Capability) bool { return true }

func (r *recorder) Run(ctx context.Context, call providers.Call) (providers.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	n := len(r.calls)
	r.active[call.Capability]++
	if r.active[call.Capability] > r.peak[call.Capability] {
		r.peak[call.Capability] = r.active[call.Capability]
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active[call.Capability]--
		r.mu.Unlock()
	}()
	if r.hold > 0 {
		time.Sleep(r.hold)
	}
	if r.fail != nil {
		if err := r.fail(call); err != nil {
			return providers.Result{}, err
		}
	}
	result, err := r.inner.Run(ctx, call)
	if err != nil {
		return result, err
	}
	if r.mutate != nil {
		result = r.mutate(n, call, result)
	}
	r.mu.Lock()
	r.results[resultKey{call.Capability, call.Seed}] = result
	r.mu.Unlock()
	return result, nil
}

type resultKey struct {
	capability providers.Capability
	seed       int64
}

// resultFor returns the result of the capability call made with seed.
func (r *recorder) resultFor(capability providers.Capability, seed int64) (providers.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, ok := r.results[resultKey{capability, seed}]
	return result, ok
}

func (r *recorder) peakFor(capability providers.Capability) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak[capability]
}

func (r *recorder) callsFor(capability providers.Capability) []providers.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []providers.Call
	for _, call := range r.calls {
		if call.Capability == capability {
			out = append(out, call)
		}
	}
	return out
}

type harness struct {
	store *storage.Store
	deps  Deps
}

// newHarness routes every capability to the given default provider.
func newHarness(t *testing.T, defaultProvider string, routes map[string]string, extra ...providers.Provider) *harness {
	t.Helper()
	store, err := storage.New(t.TempDir(), testBaseURL)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	manifest := providers.Manifest{
		Version:      1,
		Defaults:     providers.ManifestDefaults{Provider: defaultProvider},
		Capabilities: map[string]providers.CapabilityEntry{},
	}
	for capability, provider := range routes {
		manifest.Capabilities[capability] = providers.CapabilityEntry{Provider: provider}
	}
	list := []providers.Provider{placeholder.New()}
	list = append(list, extra...)
	registry, err := providers.NewRegistry(manifest, list...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return &harness{
		store: store,
		deps:  Deps{Storage: store, Registry: registry, Logger: logging.NewNop()},
	}
}

func (h *harness) runners() map[pipeline.StageType]pipeline.Runner {
	return Runners(h.deps)
}

func (h *harness) runStage(t *testing.T, job *pipeline.JobContext, stageType pipeline.StageType) error {
	t.Helper()
	runner := h.runners()[stageType]
	return runner.Run(context.Background(), job, pipeline.StageSpec{ID: string(stageType), Type: stageType})
}

func (h *harness) job(t *testing.T, cfg pipeline.Config, uploads ...string) *pipeline.JobContext {
	t.Helper()
	jobID := "job-" + filepath.Base(t.Name())
	if err := h.store.EnsureJobTree(jobID); err != nil {
		t.Fatalf("EnsureJobTree: %v", err)
	}
	return pipeline.NewJobContext(jobID, cfg, pipeline.Identity{
		CharacterName: "Knight",
		Prompt:        "armoured knight",
		Seed:          42,
		StyleStrength: 0.6,
		UploadPaths:   uploads,
	}, h.store.JobDir(jobID))
}

func testConfig(stageTypes ...pipeline.StageType) pipeline.Config {
	specs := make([]pipeline.StageSpec, 0, len(stageTypes))
	for _, st := range stageTypes {
		specs = append(specs, pipeline.StageSpec{ID: string(st), Type: st})
	}
	return pipeline.Config{
		ID: "test.v1",
		StyleProfile: pipeline.StyleProfile{
			FrameWidth:  32,
			FrameHeight: 32,
			Pivot:       pipeline.Point{X: 16, Y: 28},
			Directions:  []string{"down", "up"},
		},
		ActionSet: pipeline.ActionSet{Actions: map[string]pipeline.Action{
			"walk": {Frames: 3, FPS: 8, Loop: true, Events: []pipeline.FrameEvent{{Frame: 1, Name: "footstep"}}},
		}},
		Stages: specs,
	}
}

func allStages() []pipeline.StageType {
	return pipeline.StageTypes()
}

func fileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}
