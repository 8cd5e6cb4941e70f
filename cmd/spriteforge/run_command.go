package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spriteforge/internal/logging"
	"spriteforge/internal/pipeline"
	"spriteforge/internal/preflight"
	"spriteforge/internal/stages"
	"spriteforge/internal/textutil"
)

type runOptions struct {
	pipelineID     string
	name           string
	prompt         string
	negativePrompt string
	uploads        []string
	jobID          string
	seed           int64
	strength       float64
	provider       string
	frames         []string
	skipPreflight  bool
	jsonOutput     bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline for one character",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.pipelineID, "pipeline", "p", "topdown2d.v1", "Pipeline definition id")
	flags.StringVarP(&opts.name, "name", "n", "", "Character name")
	flags.StringVar(&opts.prompt, "prompt", "", "Character description prompt")
	flags.StringVar(&opts.negativePrompt, "negative-prompt", "", "Negative prompt")
	flags.StringArrayVarP(&opts.uploads, "upload", "u", nil, "Reference image path (repeatable; the first is the primary)")
	flags.StringVar(&opts.jobID, "job-id", "", "Job id (default: new UUID)")
	flags.Int64Var(&opts.seed, "seed", 1, "Base generation seed")
	flags.Float64Var(&opts.strength, "strength", 0.65, "Style strength for stylize and turnaround")
	flags.StringVar(&opts.provider, "provider", "", "Provider hint applied to every capability")
	flags.StringArrayVar(&opts.frames, "frames", nil, "Frame count override as action=N (repeatable)")
	flags.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Run without readiness checks")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the job result as JSON")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func runJob(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if !opts.skipPreflight {
		results := preflight.RunAll(cmd.Context(), cfg, opts.provider)
		if failed := preflight.Failed(results); len(failed) > 0 {
			renderChecks(out, results, colorize)
			return fmt.Errorf("preflight failed: %s", failed[0].Name)
		}
	}

	overrides, err := parseFrameOverrides(opts.frames)
	if err != nil {
		return err
	}
	pipelineCfg, err := pipeline.LoadConfig(opts.pipelineID, cfg.Paths.PipelinesDir)
	if err != nil {
		return err
	}
	store, err := ctx.store()
	if err != nil {
		return err
	}
	registry, err := ctx.registry()
	if err != nil {
		return err
	}

	jobID := strings.TrimSpace(opts.jobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if err := store.EnsureJobTree(jobID); err != nil {
		return err
	}
	lock, err := store.LockJob(jobID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	job := pipeline.NewJobContext(jobID, pipelineCfg, pipeline.Identity{
		CharacterName:   strings.TrimSpace(opts.name),
		Prompt:          strings.TrimSpace(opts.prompt),
		NegativePrompt:  strings.TrimSpace(opts.negativePrompt),
		Seed:            opts.seed,
		StyleStrength:   opts.strength,
		ProviderHint:    strings.TrimSpace(opts.provider),
		UploadPaths:     opts.uploads,
		ActionOverrides: overrides,
	}, store.JobDir(jobID))

	runners := stages.Runners(stages.Deps{
		Storage:      store,
		Registry:     registry,
		Logger:       logger,
		InlineInputs: stages.LocalBaseURL(cfg.Server.BaseURL),
	})
	engine := pipeline.NewEngine(runners, logger)

	if !opts.jsonOutput {
		fmt.Fprintln(out, renderStatusLine("Job", statusInfo, jobID, colorize))
	}
	started := map[string]time.Time{}
	emit := pipeline.Emitter{
		OnStageStart: func(id string) {
			started[id] = time.Now()
			if !opts.jsonOutput {
				fmt.Fprintln(out, renderStatusLine(textutil.StageLabel(id), statusInfo, "running", colorize))
			}
		},
		OnStageComplete: func(id string) {
			if !opts.jsonOutput {
				elapsed := time.Since(started[id]).Round(time.Millisecond)
				fmt.Fprintln(out, renderStatusLine(textutil.StageLabel(id), statusOK, elapsed.String(), colorize))
			}
		},
		OnLog: func(message string) {
			if !opts.jsonOutput {
				fmt.Fprintln(out, renderStatusLine("Pipeline", statusError, message, colorize))
			}
		},
	}

	start := time.Now()
	result, runErr := engine.Run(cmd.Context(), job, pipelineCfg, emit)
	logger.Info("job finished",
		logging.String(logging.FieldJobID, jobID),
		logging.String("pipeline_id", pipelineCfg.ID),
		logging.Duration("duration", time.Since(start)),
		logging.Bool("ok", runErr == nil),
	)

	if opts.jsonOutput {
		if err := writeJSON(cmd, newJobSummary(result, runErr)); err != nil {
			return err
		}
		return runErr
	}
	fmt.Fprintln(out, renderJobSummary(result))
	return runErr
}

// parseFrameOverrides reads action=N pairs.
func parseFrameOverrides(values []string) (map[string]pipeline.ActionOverride, error) {
	if len(values) == 0 {
		return nil, nil
	}
	overrides := make(map[string]pipeline.ActionOverride, len(values))
	for _, raw := range values {
		action, count, ok := strings.Cut(raw, "=")
		action = strings.TrimSpace(action)
		if !ok || action == "" {
			return nil, fmt.Errorf("invalid --frames value %q (want action=N)", raw)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid --frames value %q: frame count must be a positive integer", raw)
		}
		overrides[action] = pipeline.ActionOverride{Frames: n}
	}
	return overrides, nil
}

type jobSummary struct {
	JobID        string                 `json:"jobId"`
	PipelineID   string                 `json:"pipelineId"`
	OK           bool                   `json:"ok"`
	Error        string                 `json:"error,omitempty"`
	Uploads      []string               `json:"uploads"`
	Stylized     string                 `json:"stylized,omitempty"`
	Turnarounds  map[string]string      `json:"turnarounds,omitempty"`
	Frames       int                    `json:"frames"`
	Masks        int                    `json:"masks"`
	SpriteSheets []pipeline.SpriteSheet `json:"spriteSheets"`
	Manifest     string                 `json:"manifest,omitempty"`
}

func newJobSummary(job *pipeline.JobContext, err error) jobSummary {
	summary := jobSummary{OK: err == nil}
	if err != nil {
		summary.Error = err.Error()
	}
	if job == nil {
		return summary
	}
	summary.JobID = job.JobID
	summary.PipelineID = job.PipelineID
	summary.Uploads = job.UploadPaths
	summary.Stylized = job.StylizedPath
	summary.Turnarounds = job.TurnaroundPaths
	summary.Frames = len(job.Frames)
	summary.Masks = len(job.Masks)
	summary.SpriteSheets = job.SpriteSheets
	summary.Manifest = job.ManifestPath
	return summary
}

func renderJobSummary(job *pipeline.JobContext) string {
	if job == nil {
		return ""
	}
	rows := [][]string{
		{"Uploads", strconv.Itoa(len(job.UploadPaths)), ""},
		{"Stylized", textutil.Ternary(job.StylizedPath != "", "1", "0"), job.StylizedPath},
		{"Turnarounds", strconv.Itoa(len(job.TurnaroundPaths)), ""},
		{"Frames", strconv.Itoa(len(job.Frames)), ""},
		{"Masks", strconv.Itoa(len(job.Masks)), ""},
	}
	for _, sheet := range job.SpriteSheets {
		rows = append(rows, []string{
			"Sheet " + sheet.Action,
			fmt.Sprintf("%dx%d", sheet.Cols, sheet.Rows),
			sheet.Path,
		})
	}
	footer := []string{"Manifest", yesNo(job.ManifestPath != ""), job.ManifestPath}
	return tableSpec{
		title:   "Job " + job.JobID,
		headers: []string{"Output", "Count", "Path"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignRight, alignLeft},
		footer:  footer,
	}.render()
}
