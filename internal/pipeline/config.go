package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"spriteforge/internal/services"
	"spriteforge/internal/textutil"
)

// StageType selects the runner for a stage.
type StageType string

// Known stage types.
const (
	StageIngest      StageType = "ingest"
	StageStylize     StageType = "stylize"
	StageTurnaround  StageType = "turnaround"
	StageActions     StageType = "actions"
	StageSegment     StageType = "segment"
	StageSpritesheet StageType = "spritesheet"
	StageManifest    StageType = "manifest"
)

// StageTypes lists the known stage types in canonical order.
func StageTypes() []StageType {
	return []StageType{StageIngest, StageStylize, StageTurnaround, StageActions, StageSegment, StageSpritesheet, StageManifest}
}

// Valid reports whether t is a known stage type.
func (t StageType) Valid() bool {
	return slices.Contains(StageTypes(), t)
}

// StageSpec is one entry of the ordered stage list.
type StageSpec struct {
	ID   string    `json:"id"`
	Type StageType `json:"type"`
	// Capability overrides the stage's default capability id.
	Capability string `json:"capability,omitempty"`
}

// Point is a pixel coordinate within a frame.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// StyleProfile fixes the frame geometry and visual policy of a pipeline.
type StyleProfile struct {
	FrameWidth    int      `json:"frameWidth"`
	FrameHeight   int      `json:"frameHeight"`
	Pivot         Point    `json:"pivot"`
	Directions    []string `json:"directions"`
	PalettePolicy string   `json:"palettePolicy,omitempty"`
	// GenerationSize is the raster size requested from providers. Frames are
	// downscaled into FrameWidth x FrameHeight cells when packed.
	GenerationSize *Size `json:"generationSize,omitempty"`
}

// FrameEvent marks a named gameplay event on a frame.
type FrameEvent struct {
	Frame int    `json:"frame"`
	Name  string `json:"name"`
}

// Action is one animation.
type Action struct {
	Frames int          `json:"frames"`
	FPS    int          `json:"fps"`
	Loop   bool         `json:"loop"`
	Events []FrameEvent `json:"events,omitempty"`
}

// ActionSet holds the named animations of a pipeline.
type ActionSet struct {
	Actions map[string]Action `json:"actions"`
}

// Names returns action names in sorted order, the iteration order used by
// every stage.
func (s ActionSet) Names() []string {
	names := make([]string, 0, len(s.Actions))
	for name := range s.Actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TotalFrames sums frame counts over all actions.
func (s ActionSet) TotalFrames() int {
	total := 0
	for _, a := range s.Actions {
		total += a.Frames
	}
	return total
}

// Config is a parsed pipeline definition.
type Config struct {
	ID           string       `json:"id"`
	Description  string       `json:"description,omitempty"`
	StyleProfile StyleProfile `json:"styleProfile"`
	ActionSet    ActionSet    `json:"actionSet"`
	Stages       []StageSpec  `json:"stages"`
}

// LoadConfig reads <rootDir>/<pipelineID>.json and validates it, including
// stage data flow for a job that starts with uploads on disk.
func LoadConfig(pipelineID, rootDir string) (Config, error) {
	id := strings.TrimSpace(pipelineID)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return Config{}, services.Wrap(services.ErrConfiguration, "pipeline", "load", fmt.Sprintf("invalid pipeline id %q", pipelineID), nil)
	}
	path := filepath.Join(rootDir, id+".json")
	f, err := os.Open(path)
	if err != nil {
		marker := services.ErrConfiguration
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return Config{}, services.Wrap(marker, "pipeline", "load", path, err)
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.ID != id {
		return Config{}, services.Wrap(services.ErrConfiguration, "pipeline", "load",
			fmt.Sprintf("%s declares id %q, expected %q", path, cfg.ID, id), nil)
	}
	if err := CheckDataFlow(cfg.Stages, SlotSet{SlotUploads: true}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListConfigs returns the ids of the pipeline definitions in rootDir, sorted.
// A missing directory yields an empty list.
func ListConfigs(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "list", rootDir, err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(ids)
	return ids, nil
}

// ParseConfig decodes a pipeline definition, rejecting unknown fields, and
// validates it.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, services.Wrap(services.ErrConfiguration, "pipeline", "parse", "", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the schema invariants.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("stages must not be empty"))
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for i, stage := range c.Stages {
		if strings.TrimSpace(stage.ID) == "" {
			errs = append(errs, fmt.Errorf("stages[%d].id is required", i))
		} else if _, dup := seen[stage.ID]; dup {
			errs = append(errs, fmt.Errorf("stages[%d].id %q is duplicated", i, stage.ID))
		}
		seen[stage.ID] = struct{}{}
		if !stage.Type.Valid() {
			errs = append(errs, fmt.Errorf("stages[%d]: unknown stage type %q", i, stage.Type))
		}
	}

	sp := c.StyleProfile
	if sp.FrameWidth <= 0 || sp.FrameHeight <= 0 {
		errs = append(errs, errors.New("styleProfile frameWidth and frameHeight must be positive"))
	}
	if len(sp.Directions) == 0 {
		errs = append(errs, errors.New("styleProfile.directions must not be empty"))
	}
	dirs := make(map[string]struct{}, len(sp.Directions))
	for _, d := range sp.Directions {
		if strings.TrimSpace(d) == "" || strings.ContainsAny(d, `/\`) {
			errs = append(errs, fmt.Errorf("styleProfile.directions: invalid direction %q", d))
			continue
		}
		if _, dup := dirs[d]; dup {
			errs = append(errs, fmt.Errorf("styleProfile.directions: %q is duplicated", d))
		}
		dirs[d] = struct{}{}
	}
	errs = append(errs, tokenCollisions("styleProfile.directions", sp.Directions)...)
	if sp.GenerationSize != nil && (sp.GenerationSize.Width <= 0 || sp.GenerationSize.Height <= 0) {
		errs = append(errs, errors.New("styleProfile.generationSize must be positive when set"))
	}

	for _, name := range c.ActionSet.Names() {
		action := c.ActionSet.Actions[name]
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			errs = append(errs, fmt.Errorf("actionSet: invalid action name %q", name))
		}
		if action.Frames < 1 {
			errs = append(errs, fmt.Errorf("actionSet.%s.frames must be at least 1", name))
		}
		if action.FPS < 1 {
			errs = append(errs, fmt.Errorf("actionSet.%s.fps must be at least 1", name))
		}
		for _, ev := range action.Events {
			if ev.Frame < 0 || ev.Frame >= action.Frames {
				errs = append(errs, fmt.Errorf("actionSet.%s: event %q frame %d out of range", name, ev.Name, ev.Frame))
			}
		}
	}

	errs = append(errs, tokenCollisions("actionSet", c.ActionSet.Names())...)

	if len(errs) > 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "validate", c.ID, errors.Join(errs...))
	}
	return nil
}

// tokenCollisions reports names that would share an artifact path segment.
func tokenCollisions(field string, names []string) []error {
	var errs []error
	owner := make(map[string]string, len(names))
	for _, name := range names {
		token := textutil.PathToken(name)
		if prev, ok := owner[token]; ok && prev != name {
			errs = append(errs, fmt.Errorf("%s: %q and %q share the artifact path %q", field, prev, name, token))
			continue
		}
		owner[token] = name
	}
	return errs
}
