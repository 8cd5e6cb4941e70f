package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"spriteforge/internal/services"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "topdown2d.v1", topdownJSON)

	cfg, err := LoadConfig("topdown2d.v1", dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.Stages) != 7 || cfg.Stages[1].Capability != "generate.stylize" {
		t.Fatalf("unexpected stages %+v", cfg.Stages)
	}
	if diff := cmp.Diff([]string{"idle", "walk"}, cfg.ActionSet.Names()); diff != "" {
		t.Fatalf("action order mismatch (-want +got):\n%s", diff)
	}
	if cfg.ActionSet.TotalFrames() != 10 {
		t.Fatalf("unexpected total frames %d", cfg.ActionSet.TotalFrames())
	}
	if cfg.StyleProfile.Pivot != (Point{X: 32, Y: 56}) {
		t.Fatalf("unexpected pivot %+v", cfg.StyleProfile.Pivot)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "broken", `{"id": "broken", "stages": [`)
	writePipeline(t, dir, "extra", strings.Replace(topdownJSON, `"id": "topdown2d.v1"`, `"id": "extra", "owner": "me"`, 1))
	writePipeline(t, dir, "renamed", topdownJSON)
	writePipeline(t, dir, "misordered", `{
  "id": "misordered",
  "styleProfile": {"frameWidth": 8, "frameHeight": 8, "directions": ["down"]},
  "actionSet": {"actions": {"idle": {"frames": 1, "fps": 1}}},
  "stages": [{"id": "sheet", "type": "spritesheet"}, {"id": "actions", "type": "actions"}]
}`)

	cases := []struct {
		id     string
		marker error
		text   string
	}{
		{"missing", services.ErrNotFound, "missing.json"},
		{"broken", services.ErrConfiguration, "parse"},
		{"extra", services.ErrConfiguration, "owner"},
		{"renamed", services.ErrConfiguration, `declares id "topdown2d.v1"`},
		{"misordered", services.ErrConfiguration, "stage sheet (spritesheet) needs frames"},
		{"../escape", services.ErrConfiguration, "invalid pipeline id"},
	}
	for _, tc := range cases {
		_, err := LoadConfig(tc.id, dir)
		if err == nil {
			t.Fatalf("%s: expected error", tc.id)
		}
		if !errors.Is(err, tc.marker) {
			t.Fatalf("%s: expected %v, got %v", tc.id, tc.marker, err)
		}
		if !strings.Contains(err.Error(), tc.text) {
			t.Fatalf("%s: error %q does not mention %q", tc.id, err, tc.text)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		text   string
	}{
		{"empty stages", func(c *Config) { c.Stages = nil }, "stages must not be empty"},
		{"duplicate stage", func(c *Config) { c.Stages = append(c.Stages, StageSpec{ID: "ingest", Type: StageIngest}) }, "duplicated"},
		{"unknown type", func(c *Config) { c.Stages[0].Type = "upscale" }, "unknown stage type"},
		{"zero frame size", func(c *Config) { c.StyleProfile.FrameWidth = 0 }, "frameWidth"},
		{"no directions", func(c *Config) { c.StyleProfile.Directions = nil }, "directions must not be empty"},
		{"duplicate direction", func(c *Config) { c.StyleProfile.Directions = []string{"down", "down"} }, "duplicated"},
		{"zero frames", func(c *Config) { c.ActionSet.Actions["walk"] = Action{Frames: 0, FPS: 8} }, "frames must be at least 1"},
		{"zero fps", func(c *Config) { c.ActionSet.Actions["walk"] = Action{Frames: 2, FPS: 0} }, "fps must be at least 1"},
		{"action path collision", func(c *Config) { c.ActionSet.Actions["Walk"] = Action{Frames: 2, FPS: 8} }, `"Walk" and "walk" share the artifact path "walk"`},
		{"direction path collision", func(c *Config) { c.StyleProfile.Directions = []string{"up left", "up_left"} }, "share the artifact path"},
		{"event out of range", func(c *Config) {
			c.ActionSet.Actions["walk"] = Action{Frames: 2, FPS: 8, Events: []FrameEvent{{Frame: 2, Name: "step"}}}
		}, "out of range"},
	}
	for _, tc := range cases {
		cfg := basicConfig("ingest")
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), tc.text) {
			t.Fatalf("%s: expected configuration error mentioning %q, got %v", tc.name, tc.text, err)
		}
	}
	if err := basicConfig("ingest").Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestListConfigs(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "topdown2d.v1", topdownJSON)
	writePipeline(t, dir, "iso.v2", topdownJSON)
	writePipeline(t, dir, "notes", "")
	if err := os.Rename(filepath.Join(dir, "notes.json"), filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	ids, err := ListConfigs(dir)
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if diff := cmp.Diff([]string{"iso.v2", "topdown2d.v1"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	ids, err = ListConfigs(filepath.Join(dir, "missing"))
	if err != nil || len(ids) != 0 {
		t.Fatalf("missing dir should list nothing, got %v, %v", ids, err)
	}
}
