package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

const topdownJSON = `{
  "id": "topdown2d.v1",
  "styleProfile": {
    "frameWidth": 64,
    "frameHeight": 64,
    "pivot": {"x": 32, "y": 56},
    "directions": ["down", "left", "right", "up"],
    "palettePolicy": "limited palette"
  },
  "actionSet": {
    "actions": {
      "walk": {"frames": 6, "fps": 10, "loop": true, "events": [{"frame": 1, "name": "footstep"}, {"frame": 4, "name": "footstep"}]},
      "idle": {"frames": 4, "fps": 6, "loop": true}
    }
  },
  "stages": [
    {"id": "ingest", "type": "ingest"},
    {"id": "stylize", "type": "stylize", "capability": "generate.stylize"},
    {"id": "turnaround", "type": "turnaround"},
    {"id": "actions", "type": "actions"},
    {"id": "segment", "type": "segment"},
    {"id": "spritesheet", "type": "spritesheet"},
    {"id": "manifest", "type": "manifest"}
  ]
}`

func writePipeline(t *testing.T, dir, id, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
}

func stages(pairs ...string) []StageSpec {
	out := make([]StageSpec, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, StageSpec{ID: p, Type: StageType(p)})
	}
	return out
}

func basicConfig(stageTypes ...string) Config {
	return Config{
		ID: "test",
		StyleProfile: StyleProfile{
			FrameWidth:  32,
			FrameHeight: 32,
			Directions:  []string{"down", "up"},
		},
		ActionSet: ActionSet{Actions: map[string]Action{"walk": {Frames: 3, FPS: 8, Loop: true}}},
		Stages:    stages(stageTypes...),
	}
}
