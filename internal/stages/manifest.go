package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"spriteforge/internal/fileutil"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/services"
)

// ManifestVersion is the schema version of the sprite manifest.
const ManifestVersion = 1

// SpriteManifest is the engine-facing description of the packed sheets.
type SpriteManifest struct {
	Version     int             `json:"version"`
	JobID       string          `json:"jobId"`
	PipelineID  string          `json:"pipelineId"`
	Character   string          `json:"character"`
	FrameWidth  int             `json:"frameWidth"`
	FrameHeight int             `json:"frameHeight"`
	Pivot       pipeline.Point  `json:"pivot"`
	Directions  []string        `json:"directions"`
	Sheets      []ManifestSheet `json:"sheets"`
	Animations  []ManifestAnim  `json:"animations"`
}

// ManifestSheet is one sheet image.
type ManifestSheet struct {
	Action string `json:"action"`
	URL    string `json:"url"`
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ManifestAnim is one (action, direction) animation strip within a sheet.
type ManifestAnim struct {
	Name      string                `json:"name"`
	Action    string                `json:"action"`
	Direction string                `json:"direction"`
	Sheet     string                `json:"sheet"`
	FPS       int                   `json:"fps"`
	Loop      bool                  `json:"loop"`
	Events    []pipeline.FrameEvent `json:"events"`
	Frames    []FrameRect           `json:"frames"`
}

// FrameRect locates a frame inside its sheet.
type FrameRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type manifestStage struct{ Deps }

func (s *manifestStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if len(job.SpriteSheets) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "manifest", "no spritesheets; run a spritesheet stage first", nil)
	}
	doc, err := s.build(job)
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.ID, "build manifest", "", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.ID, "encode manifest", "", err)
	}
	dest := artifactPath(s.Deps, job, "manifest.json")
	if err := fileutil.WriteFileAtomic(dest, append(data, '\n')); err != nil {
		return services.Wrap(services.ErrExternalTool, stage.ID, "write manifest", dest, err)
	}
	job.ManifestPath = dest
	return ctx.Err()
}

func (s *manifestStage) build(job *pipeline.JobContext) (SpriteManifest, error) {
	fw, fh := job.FrameWidth, job.FrameHeight
	actions := job.EffectiveActions()
	doc := SpriteManifest{
		Version:     ManifestVersion,
		JobID:       job.JobID,
		PipelineID:  job.PipelineID,
		Character:   job.CharacterName,
		FrameWidth:  fw,
		FrameHeight: fh,
		Pivot:       job.Pivot,
		Directions:  append([]string{}, job.Directions...),
		Sheets:      make([]ManifestSheet, 0, len(job.SpriteSheets)),
		Animations:  []ManifestAnim{},
	}
	for _, sheet := range job.SpriteSheets {
		url, err := s.Storage.FileURL(sheet.Path)
		if err != nil {
			return SpriteManifest{}, fmt.Errorf("sheet %s: %w", sheet.Action, err)
		}
		doc.Sheets = append(doc.Sheets, ManifestSheet{
			Action: sheet.Action,
			URL:    url,
			Cols:   sheet.Cols,
			Rows:   sheet.Rows,
			Width:  sheet.Cols * fw,
			Height: sheet.Rows * fh,
		})
		action := actions.Actions[sheet.Action]
		events := append([]pipeline.FrameEvent{}, action.Events...)
		for row, dir := range job.Directions {
			rects := make([]FrameRect, 0, sheet.Cols)
			for col := 0; col < sheet.Cols; col++ {
				rects = append(rects, FrameRect{X: col * fw, Y: row * fh, W: fw, H: fh})
			}
			doc.Animations = append(doc.Animations, ManifestAnim{
				Name:      sheet.Action + "_" + dir,
				Action:    sheet.Action,
				Direction: dir,
				Sheet:     url,
				FPS:       action.FPS,
				Loop:      action.Loop,
				Events:    events,
				Frames:    rects,
			})
		}
	}
	return doc, nil
}
