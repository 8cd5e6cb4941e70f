package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewJobContextCopiesDerivedConfig(t *testing.T) {
	cfg := basicConfig("ingest")
	cfg.StyleProfile.Pivot = Point{X: 16, Y: 30}
	cfg.StyleProfile.GenerationSize = &Size{Width: 512, Height: 512}
	id := Identity{CharacterName: "Knight", Prompt: "armored knight", Seed: 9, StyleStrength: 0.6, UploadPaths: []string{"/in/a.png"}}

	job := NewJobContext("job-1", cfg, id, "/data/jobs/job-1")

	if job.PipelineID != "test" || job.FrameWidth != 32 || job.Pivot != (Point{X: 16, Y: 30}) {
		t.Fatalf("derived fields not copied: %+v", job)
	}
	cfg.StyleProfile.Directions[0] = "mutated"
	cfg.StyleProfile.GenerationSize.Width = 1
	if job.Directions[0] != "down" || job.GenerationSize.Width != 512 {
		t.Fatal("job context must not alias the pipeline config")
	}
	if diff := cmp.Diff(SlotSet{SlotUploads: true}, job.Slots()); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
	if job.DirectionIndex("up") != 1 || job.DirectionIndex("left") != -1 {
		t.Fatal("unexpected direction index")
	}
}

func TestEffectiveActionsMergesOverrides(t *testing.T) {
	cfg := basicConfig("ingest")
	cfg.ActionSet.Actions["walk"] = Action{Frames: 6, FPS: 10, Loop: true, Events: []FrameEvent{{Frame: 1, Name: "step"}, {Frame: 4, Name: "step"}}}
	cfg.ActionSet.Actions["attack"] = Action{Frames: 5, FPS: 12}
	noLoop := false
	job := NewJobContext("job-1", cfg, Identity{ActionOverrides: map[string]ActionOverride{
		"walk":  {Frames: 3, Loop: &noLoop},
		"ghost": {Frames: 9},
	}}, "")

	got := job.EffectiveActions()
	want := ActionSet{Actions: map[string]Action{
		"walk":   {Frames: 3, FPS: 10, Loop: false, Events: []FrameEvent{{Frame: 1, Name: "step"}}},
		"attack": {Frames: 5, FPS: 12},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("effective actions mismatch (-want +got):\n%s", diff)
	}
	if job.Actions.Actions["walk"].Frames != 6 {
		t.Fatal("configured action set must stay untouched")
	}
}
