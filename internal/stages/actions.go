package stages

import (
	"context"
	"fmt"

	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/services"
)

const (
	firstFrameStrength = 0.45
	nextFrameStrength  = 0.30
	actionSeedStep     = 7919
)

type actionsStage struct{ Deps }

type actionPair struct {
	action    string
	direction string
	spec      pipeline.Action
}

// Run generates every (action, direction) sequence. Frames within a sequence
// are chained: each frame is derived from the previous one, and the
// turnaround view rides along as a reference on every call.
func (s *actionsStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if len(job.TurnaroundPaths) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "actions", "turnaround images missing; run a turnaround stage first", nil)
	}
	actions := job.EffectiveActions()
	var pairs []actionPair
	for _, name := range actions.Names() {
		for _, dir := range job.Directions {
			if _, ok := job.TurnaroundPaths[dir]; !ok {
				return services.Wrap(services.ErrValidation, stage.ID, "actions", "no turnaround image for direction "+dir, nil)
			}
			pairs = append(pairs, actionPair{action: name, direction: dir, spec: actions.Actions[name]})
		}
	}

	capability := capabilityFor(stage, providers.CapabilityAction)
	sequences, err := fanOut(ctx, actionsConcurrency, len(pairs), func(ctx context.Context, i int) ([]pipeline.Frame, error) {
		return s.sequence(ctx, job, stage, capability, pairs[i], int64(i+1)*actionSeedStep)
	})
	if err != nil {
		return err
	}

	var frames []pipeline.Frame
	for _, seq := range sequences {
		frames = append(frames, seq...)
	}
	job.Frames = frames
	return nil
}

func (s *actionsStage) sequence(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec, capability providers.Capability, pair actionPair, seedOffset int64) ([]pipeline.Frame, error) {
	label := fmt.Sprintf("%s/%s", pair.action, pair.direction)
	turnaround := job.TurnaroundPaths[pair.direction]
	baseURL, err := s.sourceURL(turnaround)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage.ID, "address turnaround", label, err)
	}
	prompt := basePrompt(job)

	frames := make([]pipeline.Frame, 0, pair.spec.Frames)
	prev := baseURL
	for idx := 0; idx < pair.spec.Frames; idx++ {
		strength := nextFrameStrength
		if idx == 0 {
			strength = firstFrameStrength
		}
		result, err := s.generate(ctx, job, capability, providers.Call{
			Prompt: fmt.Sprintf("%s, %s animation, facing %s, frame %d of %d",
				prompt, pair.action, pair.direction, idx+1, pair.spec.Frames),
			NegativePrompt:     job.NegativePrompt,
			ImageURL:           prev,
			Seed:               job.Seed + seedOffset + int64(idx),
			Strength:           strength,
			ReferenceImageURLs: []string{baseURL},
			Size:               generationSize(job),
		})
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stage.ID, "generate", fmt.Sprintf("%s frame %d", label, idx), err)
		}
		if len(result.Images) == 0 {
			return nil, services.Wrap(services.ErrExternalTool, stage.ID, "generate", fmt.Sprintf("%s frame %d: provider returned no image", label, idx), nil)
		}
		frame := pipeline.Frame{Action: pair.action, Direction: pair.direction, Index: idx}
		frame.Path = framePath(s.Deps, job, "frames", frame)
		if err := s.save(ctx, result.Images[0].URL, frame.Path); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stage.ID, "save output", fmt.Sprintf("%s frame %d", label, idx), err)
		}
		frames = append(frames, frame)
		prev = result.Images[0].URL
	}
	return frames, nil
}
