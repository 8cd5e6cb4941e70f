package stages

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"spriteforge/internal/imaging"
	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/providers"
	"spriteforge/internal/storage"
	"spriteforge/internal/textutil"
)

// Concurrency limits per stage.
const (
	turnaroundConcurrency = 2
	actionsConcurrency    = 2
	segmentConcurrency    = 3
)

// Deps are the collaborators shared by every runner.
type Deps struct {
	Storage  *storage.Store
	Registry *providers.Registry
	Fetcher  *imaging.Fetcher
	Logger   *slog.Logger
	// InlineInputs sends local images to providers as data: URLs instead of
	// store URLs, for backends that cannot reach the file server.
	InlineInputs bool
}

// Runners returns the full runner set keyed by stage type.
func Runners(deps Deps) map[pipeline.StageType]pipeline.Runner {
	if deps.Fetcher == nil {
		deps.Fetcher = imaging.NewFetcher(deps.Storage)
	}
	deps.Logger = logging.NewComponentLogger(deps.Logger, "stages")
	return map[pipeline.StageType]pipeline.Runner{
		pipeline.StageIngest:      &ingestStage{deps},
		pipeline.StageStylize:     &stylizeStage{deps},
		pipeline.StageTurnaround:  &turnaroundStage{deps},
		pipeline.StageActions:     &actionsStage{deps},
		pipeline.StageSegment:     &segmentStage{deps},
		pipeline.StageSpritesheet: &spritesheetStage{deps},
		pipeline.StageManifest:    &manifestStage{deps},
	}
}

// LocalBaseURL reports whether base points at a loopback host, in which case
// remote backends cannot fetch store URLs.
func LocalBaseURL(base string) bool {
	parsed, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d Deps) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, d.Logger)
}

func capabilityFor(stage pipeline.StageSpec, fallback providers.Capability) providers.Capability {
	if c := strings.TrimSpace(stage.Capability); c != "" {
		return providers.Capability(c)
	}
	return fallback
}

func generationSize(job *pipeline.JobContext) *providers.Size {
	if job.GenerationSize == nil {
		return nil
	}
	return &providers.Size{Width: job.GenerationSize.Width, Height: job.GenerationSize.Height}
}

// basePrompt joins the job prompt with the style profile's palette policy.
func basePrompt(job *pipeline.JobContext) string {
	prompt := strings.TrimSpace(job.Prompt)
	if name := strings.TrimSpace(job.CharacterName); name != "" && !strings.Contains(strings.ToLower(prompt), strings.ToLower(name)) {
		prompt = name + ", " + prompt
	}
	if policy := strings.TrimSpace(job.PalettePolicy); policy != "" {
		prompt += ". Palette: " + policy
	}
	return strings.TrimSpace(prompt)
}

// generate routes one call through the registry with the job's provider hint.
func (d Deps) generate(ctx context.Context, job *pipeline.JobContext, capability providers.Capability, call providers.Call) (providers.Result, error) {
	call.ProviderHint = job.ProviderHint
	start := time.Now()
	result, route, err := d.Registry.Run(ctx, capability, call)
	d.log(ctx).Debug("provider call",
		logging.Event("provider_call"),
		logging.String(logging.FieldCapability, string(capability)),
		logging.String(logging.FieldProvider, route.Provider),
		logging.String("route_source", route.Source),
		logging.Int("images", len(result.Images)),
		logging.Int("masks", len(result.Masks)),
		logging.Duration("duration", time.Since(start)),
		logging.Bool("ok", err == nil),
	)
	return result, err
}

// save fetches a provider output URL and writes it as PNG at dest.
func (d Deps) save(ctx context.Context, rawURL, dest string) error {
	img, err := d.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	return imaging.WritePNG(dest, img)
}

// sourceURL addresses a local file for a provider call.
func (d Deps) sourceURL(path string) (string, error) {
	if d.InlineInputs {
		img, err := imaging.Load(path)
		if err != nil {
			return "", err
		}
		return imaging.EncodeDataURL(img)
	}
	return d.Storage.FileURL(path)
}

func artifactPath(d Deps, job *pipeline.JobContext, rel ...string) string {
	return d.Storage.JobPath(job.JobID, append([]string{storage.ArtifactsDir}, rel...)...)
}

func framePath(d Deps, job *pipeline.JobContext, kind string, f pipeline.Frame) string {
	return artifactPath(d, job, kind, textutil.PathToken(f.Action), textutil.PathToken(f.Direction), fmt.Sprintf("%d.png", f.Index))
}
