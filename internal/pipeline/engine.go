package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spriteforge/internal/logging"
	"spriteforge/internal/services"
)

// Runner executes one stage against the job context.
type Runner interface {
	Run(ctx context.Context, job *JobContext, stage StageSpec) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *JobContext, stage StageSpec) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, job *JobContext, stage StageSpec) error {
	return f(ctx, job, stage)
}

// Emitter receives lifecycle callbacks. Nil funcs are skipped.
type Emitter struct {
	OnStageStart    func(stageID string)
	OnStageComplete func(stageID string)
	OnLog           func(message string)
}

func (e Emitter) stageStart(id string) {
	if e.OnStageStart != nil {
		e.OnStageStart(id)
	}
}

func (e Emitter) stageComplete(id string) {
	if e.OnStageComplete != nil {
		e.OnStageComplete(id)
	}
}

func (e Emitter) log(msg string) {
	if e.OnLog != nil {
		e.OnLog(msg)
	}
}

// Engine sequences stages.
type Engine struct {
	runners map[StageType]Runner
	logger  *slog.Logger
}

// NewEngine builds an engine over the given runner set.
func NewEngine(runners map[StageType]Runner, logger *slog.Logger) *Engine {
	return &Engine{
		runners: runners,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

type plannedStage struct {
	spec   StageSpec
	runner Runner
}

// Run executes cfg's stages in order against job. The first failure stops the
// run; the returned context holds everything produced up to that point.
func (e *Engine) Run(ctx context.Context, job *JobContext, cfg Config, emit Emitter) (*JobContext, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "job context is required", nil)
	}
	ctx = services.WithJobID(ctx, job.JobID)
	runLogger := logging.WithContext(ctx, e.logger)

	plan, err := e.plan(job, cfg)
	if err != nil {
		logging.ErrorWithContext(runLogger, "pipeline rejected", "pipeline_rejected",
			logging.String("pipeline_id", cfg.ID),
			logging.String(logging.FieldErrorHint, "fix the pipeline definition"),
			logging.Error(err),
		)
		emit.log(err.Error())
		return job, err
	}

	runStart := time.Now()
	for _, step := range plan {
		if err := ctx.Err(); err != nil {
			emit.log(err.Error())
			return job, err
		}
		if err := e.runStage(ctx, job, step, emit); err != nil {
			return job, err
		}
	}
	runLogger.Info("pipeline completed",
		logging.Event("pipeline_complete"),
		logging.String("pipeline_id", cfg.ID),
		logging.Int("stages", len(plan)),
		logging.Duration("duration", time.Since(runStart)),
	)
	return job, nil
}

func (e *Engine) plan(job *JobContext, cfg Config) ([]plannedStage, error) {
	plan := make([]plannedStage, 0, len(cfg.Stages))
	for _, spec := range cfg.Stages {
		runner, ok := e.runners[spec.Type]
		if !ok || runner == nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan",
				fmt.Sprintf("unknown stage type %q (stage %s)", spec.Type, spec.ID), nil)
		}
		plan = append(plan, plannedStage{spec: spec, runner: runner})
	}
	if err := CheckDataFlow(cfg.Stages, job.Slots()); err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Engine) runStage(ctx context.Context, job *JobContext, step plannedStage, emit Emitter) error {
	stageCtx := services.WithStage(services.WithRequestID(ctx, uuid.NewString()), step.spec.ID)
	stageLogger := logging.WithContext(stageCtx, e.logger)
	start := time.Now()

	stageLogger.Info("stage started",
		logging.Event("stage_start"),
		logging.String("stage_type", string(step.spec.Type)),
	)
	emit.stageStart(step.spec.ID)

	if err := step.runner.Run(stageCtx, job, step.spec); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted", logging.Error(err))
		} else {
			logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
				logging.String("stage_type", string(step.spec.Type)),
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.Duration("stage_duration", time.Since(start)),
				logging.Error(err),
			)
		}
		emit.log(err.Error())
		return err
	}

	stageLogger.Info("stage completed",
		logging.Event("stage_complete"),
		logging.String("stage_type", string(step.spec.Type)),
		logging.Duration("stage_duration", time.Since(start)),
	)
	emit.stageComplete(step.spec.ID)
	return nil
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "configuration":
		return "check the model manifest and pipeline definition"
	case "precondition":
		return "check stage order and job inputs"
	case "backend":
		return "check backend credentials and availability, then resubmit the job"
	default:
		return "check logs for details"
	}
}
