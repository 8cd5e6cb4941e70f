package stages

import (
	"context"
	"image"
	"slices"

	"spriteforge/internal/imaging"
	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/services"
	"spriteforge/internal/textutil"
)

type spritesheetStage struct{ Deps }

// Run packs frames into one sheet per action: columns are frame indices,
// rows follow the style profile's direction order.
func (s *spritesheetStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if len(job.Frames) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "spritesheet", "no frames to pack; run an actions stage first", nil)
	}
	if job.FrameWidth <= 0 || job.FrameHeight <= 0 {
		return services.Wrap(services.ErrConfiguration, stage.ID, "spritesheet", "frame size must be positive", nil)
	}

	byAction := make(map[string][]pipeline.Frame)
	for _, frame := range job.Frames {
		byAction[frame.Action] = append(byAction[frame.Action], frame)
	}
	names := make([]string, 0, len(byAction))
	for name := range byAction {
		names = append(names, name)
	}
	slices.Sort(names)

	fw, fh := job.FrameWidth, job.FrameHeight
	rows := len(job.Directions)
	sheets := make([]pipeline.SpriteSheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		frames := byAction[name]
		cols := 0
		for _, frame := range frames {
			cols = max(cols, frame.Index+1)
		}
		canvas := imaging.NewCanvas(cols*fw, rows*fh)
		for _, frame := range frames {
			row := job.DirectionIndex(frame.Direction)
			if row < 0 {
				s.log(ctx).Debug("frame direction not in style profile; skipped",
					logging.Event("frame_skipped"),
					logging.String("action", frame.Action),
					logging.String("direction", frame.Direction),
				)
				continue
			}
			img, err := imaging.Load(frame.Path)
			if err != nil {
				return services.Wrap(services.ErrNotFound, stage.ID, "load frame", frame.Path, err)
			}
			cell := image.Rect(frame.Index*fw, row*fh, (frame.Index+1)*fw, (row+1)*fh)
			imaging.PackCell(canvas, img, cell)
		}
		dest := artifactPath(s.Deps, job, "sheets", textutil.PathToken(name)+".png")
		if err := imaging.WritePNG(dest, canvas); err != nil {
			return services.Wrap(services.ErrExternalTool, stage.ID, "write sheet", name, err)
		}
		sheets = append(sheets, pipeline.SpriteSheet{Action: name, Path: dest, Cols: cols, Rows: rows})
	}
	job.SpriteSheets = sheets
	return nil
}
