package pipeline

import (
	"maps"
	"slices"
)

// Identity carries the caller-supplied fields of a job.
type Identity struct {
	CharacterName  string
	Prompt         string
	NegativePrompt string
	Seed           int64
	StyleStrength  float64
	ProviderHint   string
	UploadPaths    []string
	// ActionOverrides adjusts named actions for this job only.
	ActionOverrides map[string]ActionOverride
}

// ActionOverride replaces individual fields of a configured action. Zero
// values leave the configured value in place.
type ActionOverride struct {
	Frames int   `json:"frames,omitempty"`
	FPS    int   `json:"fps,omitempty"`
	Loop   *bool `json:"loop,omitempty"`
}

// Frame is one generated animation frame (or its mask).
type Frame struct {
	Action    string `json:"action"`
	Direction string `json:"direction"`
	Index     int    `json:"index"`
	Path      string `json:"path"`
}

// SpriteSheet is one packed action sheet.
type SpriteSheet struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
}

// JobContext is the mutable record threaded through the stages of one run.
// Only the goroutine running the current stage writes to it.
type JobContext struct {
	JobID          string
	PipelineID     string
	CharacterName  string
	Prompt         string
	NegativePrompt string
	Seed           int64
	StyleStrength  float64
	ProviderHint   string

	FrameWidth      int
	FrameHeight     int
	Pivot           Point
	Directions      []string
	PalettePolicy   string
	GenerationSize  *Size
	Actions         ActionSet
	ActionOverrides map[string]ActionOverride

	JobDir string

	UploadPaths     []string
	StylizedPath    string
	TurnaroundPaths map[string]string
	Frames          []Frame
	Masks           []Frame
	SpriteSheets    []SpriteSheet
	ManifestPath    string
}

// NewJobContext creates the context for a job at start: identity and derived
// configuration only, plus any uploads already on disk.
func NewJobContext(jobID string, cfg Config, id Identity, jobDir string) *JobContext {
	var genSize *Size
	if cfg.StyleProfile.GenerationSize != nil {
		size := *cfg.StyleProfile.GenerationSize
		genSize = &size
	}
	actions := ActionSet{Actions: maps.Clone(cfg.ActionSet.Actions)}
	if actions.Actions == nil {
		actions.Actions = map[string]Action{}
	}
	return &JobContext{
		JobID:           jobID,
		PipelineID:      cfg.ID,
		CharacterName:   id.CharacterName,
		Prompt:          id.Prompt,
		NegativePrompt:  id.NegativePrompt,
		Seed:            id.Seed,
		StyleStrength:   id.StyleStrength,
		ProviderHint:    id.ProviderHint,
		FrameWidth:      cfg.StyleProfile.FrameWidth,
		FrameHeight:     cfg.StyleProfile.FrameHeight,
		Pivot:           cfg.StyleProfile.Pivot,
		Directions:      slices.Clone(cfg.StyleProfile.Directions),
		PalettePolicy:   cfg.StyleProfile.PalettePolicy,
		GenerationSize:  genSize,
		Actions:         actions,
		ActionOverrides: maps.Clone(id.ActionOverrides),
		JobDir:          jobDir,
		UploadPaths:     slices.Clone(id.UploadPaths),
	}
}

// EffectiveActions merges per-job overrides onto the configured action set.
// Overrides naming unknown actions are ignored; events beyond a shortened
// frame count are dropped.
func (j *JobContext) EffectiveActions() ActionSet {
	out := ActionSet{Actions: make(map[string]Action, len(j.Actions.Actions))}
	for name, action := range j.Actions.Actions {
		if ov, ok := j.ActionOverrides[name]; ok {
			if ov.Frames > 0 {
				action.Frames = ov.Frames
			}
			if ov.FPS > 0 {
				action.FPS = ov.FPS
			}
			if ov.Loop != nil {
				action.Loop = *ov.Loop
			}
			events := make([]FrameEvent, 0, len(action.Events))
			for _, ev := range action.Events {
				if ev.Frame < action.Frames {
					events = append(events, ev)
				}
			}
			action.Events = events
		}
		out.Actions[name] = action
	}
	return out
}

// DirectionIndex returns the row position of dir, or -1.
func (j *JobContext) DirectionIndex(dir string) int {
	return slices.Index(j.Directions, dir)
}

// Slots reports which data slots are populated.
func (j *JobContext) Slots() SlotSet {
	set := SlotSet{}
	if len(j.UploadPaths) > 0 {
		set[SlotUploads] = true
	}
	if j.StylizedPath != "" {
		set[SlotStylized] = true
	}
	if len(j.TurnaroundPaths) > 0 {
		set[SlotTurnaround] = true
	}
	if len(j.Frames) > 0 {
		set[SlotFrames] = true
	}
	if len(j.Masks) > 0 {
		set[SlotMasks] = true
	}
	if len(j.SpriteSheets) > 0 {
		set[SlotSpriteSheets] = true
	}
	if j.ManifestPath != "" {
		set[SlotManifest] = true
	}
	return set
}
