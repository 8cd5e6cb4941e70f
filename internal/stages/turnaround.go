package stages

import (
	"context"
	"fmt"

	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/services"
	"spriteforge/internal/textutil"
)

// turnaroundSeedStep spaces per-direction seeds apart.
const turnaroundSeedStep = 1009

type turnaroundStage struct{ Deps }

func (s *turnaroundStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	source := job.StylizedPath
	if source == "" && len(job.UploadPaths) > 0 {
		source = job.UploadPaths[0]
	}
	if source == "" {
		return services.Wrap(services.ErrValidation, stage.ID, "turnaround", "no stylized image or upload to turn around", nil)
	}
	if len(job.Directions) == 0 {
		return services.Wrap(services.ErrConfiguration, stage.ID, "turnaround", "style profile declares no directions", nil)
	}
	sourceURL, err := s.sourceURL(source)
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.ID, "address source", source, err)
	}

	capability := capabilityFor(stage, providers.CapabilityTurnaround)
	prompt := basePrompt(job)
	paths, err := fanOut(ctx, turnaroundConcurrency, len(job.Directions), func(ctx context.Context, i int) (string, error) {
		dir := job.Directions[i]
		result, err := s.generate(ctx, job, capability, providers.Call{
			Prompt:         fmt.Sprintf("%s, facing %s, full body, neutral standing pose", prompt, dir),
			NegativePrompt: job.NegativePrompt,
			ImageURL:       sourceURL,
			Seed:           job.Seed + int64(i+1)*turnaroundSeedStep,
			Strength:       job.StyleStrength,
			Size:           generationSize(job),
		})
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, stage.ID, "generate", "direction "+dir, err)
		}
		if len(result.Images) == 0 {
			return "", services.Wrap(services.ErrExternalTool, stage.ID, "generate", "direction "+dir+": provider returned no image", nil)
		}
		dest := artifactPath(s.Deps, job, fmt.Sprintf("turnaround_%s.png", textutil.PathToken(dir)))
		if err := s.save(ctx, result.Images[0].URL, dest); err != nil {
			return "", services.Wrap(services.ErrExternalTool, stage.ID, "save output", "direction "+dir, err)
		}
		return dest, nil
	})
	if err != nil {
		return err
	}

	turnarounds := make(map[string]string, len(paths))
	for i, path := range paths {
		turnarounds[job.Directions[i]] = path
	}
	job.TurnaroundPaths = turnarounds
	return nil
}
