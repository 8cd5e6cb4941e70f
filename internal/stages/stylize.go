package stages

import (
	"context"
	"fmt"
	"image"

	"spriteforge/internal/imaging"
	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/services"
)

type stylizeStage struct{ Deps }

func (s *stylizeStage) Run(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec) error {
	if len(job.UploadPaths) == 0 {
		return services.Wrap(services.ErrValidation, stage.ID, "stylize", "no uploads to stylize; run an ingest stage first", nil)
	}
	primaryURL, err := s.sourceURL(job.UploadPaths[0])
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.ID, "address primary upload", job.UploadPaths[0], err)
	}
	refs, err := s.references(ctx, job, stage, job.UploadPaths[1:])
	if err != nil {
		return err
	}

	capability := capabilityFor(stage, providers.CapabilityStylize)
	result, err := s.generate(ctx, job, capability, providers.Call{
		Prompt:             basePrompt(job),
		NegativePrompt:     job.NegativePrompt,
		ImageURL:           primaryURL,
		Seed:               job.Seed,
		Strength:           job.StyleStrength,
		ReferenceImageURLs: refs,
		Size:               generationSize(job),
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stage.ID, "generate", string(capability), err)
	}
	if len(result.Images) == 0 {
		return services.Wrap(services.ErrExternalTool, stage.ID, "generate", "provider returned no stylized image", nil)
	}

	dest := artifactPath(s.Deps, job, "stylized.png")
	if err := s.save(ctx, result.Images[0].URL, dest); err != nil {
		return services.Wrap(services.ErrExternalTool, stage.ID, "save output", "stylized.png", err)
	}
	job.StylizedPath = dest
	return nil
}

// references turns secondary uploads into reference URLs: a single upload is
// passed as is, several are tiled into one reference sheet.
func (s *stylizeStage) references(ctx context.Context, job *pipeline.JobContext, stage pipeline.StageSpec, secondaries []string) ([]string, error) {
	switch len(secondaries) {
	case 0:
		return nil, nil
	case 1:
		ref, err := s.sourceURL(secondaries[0])
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, stage.ID, "address reference", secondaries[0], err)
		}
		return []string{ref}, nil
	}

	imgs := make([]image.Image, 0, len(secondaries))
	for _, path := range secondaries {
		img, err := imaging.Load(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, stage.ID, "load reference", path, err)
		}
		imgs = append(imgs, img)
	}
	sheet, cols, rows, err := imaging.TileSheet(imgs, imaging.DefaultTileSize)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage.ID, "tile references", "", err)
	}
	dest := artifactPath(s.Deps, job, "reference_sheet.png")
	if err := imaging.WritePNG(dest, sheet); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage.ID, "write reference sheet", "", err)
	}
	s.log(ctx).Debug("reference sheet written",
		logging.Event("reference_sheet"),
		logging.String("grid", fmt.Sprintf("%dx%d", cols, rows)),
		logging.Int("references", len(imgs)),
	)
	ref, err := s.sourceURL(dest)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage.ID, "address reference sheet", dest, err)
	}
	return []string{ref}, nil
}
