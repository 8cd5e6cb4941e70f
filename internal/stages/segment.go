package stages

import (
	"context"
	"fmt"

	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/services"
)

type segmentStage struct{ Deps }

// Run requests a mask per frame. A frame whose backend returns no mask is
// skipped rather than failing the stage.
func (s *segmentStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if len(job.Frames) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "segment", "no frames to segment; run an actions stage first", nil)
	}
	capability := capabilityFor(stage, providers.CapabilitySegment)
	frames := job.Frames

	masks, err := fanOut(ctx, segmentConcurrency, len(frames), func(ctx context.Context, i int) (*pipeline.Frame, error) {
		frame := frames[i]
		label := fmt.Sprintf("%s/%s/%d", frame.Action, frame.Direction, frame.Index)
		src, err := s.sourceURL(frame.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, stage.ID, "address frame", label, err)
		}
		result, err := s.generate(ctx, job, capability, providers.Call{ImageURL: src})
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stage.ID, "segment", label, err)
		}
		if len(result.Masks) == 0 {
			s.log(ctx).Debug("no mask returned; frame skipped",
				logging.Event("mask_skipped"),
				logging.String("frame", label),
			)
			return nil, nil
		}
		mask := pipeline.Frame{Action: frame.Action, Direction: frame.Direction, Index: frame.Index}
		mask.Path = framePath(s.Deps, job, "masks", mask)
		if err := s.save(ctx, result.Masks[0].URL, mask.Path); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stage.ID, "save mask", label, err)
		}
		return &mask, nil
	})
	if err != nil {
		return err
	}

	out := make([]pipeline.Frame, 0, len(masks))
	for _, mask := range masks {
		if mask != nil {
			out = append(out, *mask)
		}
	}
	job.Masks = out
	return nil
}
