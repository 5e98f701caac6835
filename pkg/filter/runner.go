package filter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openedx/openedx-filters/pkg/filter/config"
)

// Resolver maps a configured step reference to a step factory. The registry
// package provides the standard implementation; tests and embedders can
// substitute their own.
type Resolver interface {
	Resolve(ref string) (StepFactory, error)
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Bag is the accumulated argument bag: the caller's arguments overlaid
	// with every continuing step's updates, up to the point the pipeline
	// finished or was stopped.
	Bag Bag

	// Value is the short-circuit value when a step stopped the pipeline.
	Value any

	// StoppedBy names the step that stopped the pipeline, or is empty when
	// every step ran to completion.
	StoppedBy string
}

// Stopped reports whether a step short-circuited the pipeline.
func (r Result) Stopped() bool { return r.StoppedBy != "" }

// Runner executes filter pipelines. It holds no per-run state; every Run is
// independent and safe to invoke concurrently.
type Runner struct {
	source   config.Source
	resolver Resolver
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder RunRecorder
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithTracer sets the tracer used for pipeline and step spans. Defaults to
// the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithRecorder sets a recorder that receives one RunRecord per pipeline run.
// Recording is best-effort; recorder failures are logged, never propagated.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// NewRunner creates a pipeline runner reading configuration from source and
// resolving step references through resolver.
func NewRunner(source config.Source, resolver Resolver, opts ...Option) *Runner {
	r := &Runner{
		source:   source,
		resolver: resolver,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/openedx/openedx-filters/pkg/filter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline configured for filterType against args.
//
// Configuration is looked up fresh, the configured steps are resolved and
// invoked in order, and each step's updates are merged into an accumulated
// copy of args. A step may stop the pipeline with a custom value
// (Result.Value) or halt the host operation with a *TerminationError, which
// always propagates. Unexpected step errors are logged and skipped when the
// pipeline's fail_silently policy is true, propagated when false.
//
// With no configured steps, Run returns args unchanged.
func (r *Runner) Run(ctx context.Context, filterType string, args Bag) (Result, error) {
	cfg, err := r.source.Lookup(filterType)
	if err != nil {
		return Result{}, err
	}
	if len(cfg.Steps) == 0 {
		return Result{Bag: args}, nil
	}

	ctx, span := r.tracer.Start(ctx, "filter.run", trace.WithAttributes(
		attribute.String("filter.type", filterType),
		attribute.Int("filter.pipeline.length", len(cfg.Steps)),
	))
	defer span.End()

	runID := uuid.NewString()
	start := time.Now()

	steps, err := r.resolveSteps(cfg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, runID, filterType, cfg, start, Result{}, err)
		return Result{}, err
	}

	meta := Metadata{
		FilterType: filterType,
		Pipeline:   cfg.Steps,
		Extra:      cfg.Extra,
	}

	accumulated := args.Clone()
	for _, resolved := range steps {
		res, stopped, err := r.runStep(ctx, resolved, meta, accumulated, cfg.FailSilently)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.record(ctx, runID, filterType, cfg, start, Result{Bag: accumulated}, err)
			return Result{}, err
		}
		if stopped {
			res.Bag = accumulated
			r.record(ctx, runID, filterType, cfg, start, res, nil)
			return res, nil
		}
	}

	result := Result{Bag: accumulated}
	r.record(ctx, runID, filterType, cfg, start, result, nil)
	return result, nil
}

type resolvedStep struct {
	ref     string
	factory StepFactory
}

// resolveSteps resolves every configured reference in order. With
// fail_silently set, unresolvable references are logged and skipped;
// otherwise the first failure aborts resolution.
func (r *Runner) resolveSteps(cfg config.PipelineConfig) ([]resolvedStep, error) {
	steps := make([]resolvedStep, 0, len(cfg.Steps))
	for _, ref := range cfg.Steps {
		factory, err := r.resolver.Resolve(ref)
		if err != nil {
			r.logger.Error("failed to resolve pipeline step",
				slog.String("step", ref),
				slog.String("error", err.Error()))
			if cfg.FailSilently {
				continue
			}
			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				err = &ResolutionError{Ref: ref, Err: err}
			}
			return nil, err
		}
		steps = append(steps, resolvedStep{ref: ref, factory: factory})
	}
	return steps, nil
}

// runStep constructs and invokes a single step against the accumulated bag,
// merging its updates in place. It returns a stop result when the step
// short-circuits, and an error only when the pipeline must abort.
func (r *Runner) runStep(ctx context.Context, resolved resolvedStep, meta Metadata, accumulated Bag, failSilently bool) (Result, bool, error) {
	ctx, span := r.tracer.Start(ctx, "filter.step", trace.WithAttributes(
		attribute.String("filter.step", resolved.ref),
	))
	defer span.End()

	step, err := resolved.factory(meta)
	if err == nil {
		var out StepOutput
		out, err = step.RunFilter(ctx, accumulated)
		if err == nil {
			if out.Stopped() {
				r.logger.Info("pipeline stopped by step returning a custom value",
					slog.String("filter_type", meta.FilterType),
					slog.String("step", step.Name()))
				return Result{Value: out.Value(), StoppedBy: step.Name()}, true, nil
			}
			accumulated.Merge(out.Updates())
			return Result{}, false, nil
		}
	}

	span.RecordError(err)

	if term, ok := AsTermination(err); ok {
		// Termination errors exist to halt the guarded operation, so they
		// propagate even when fail_silently is set.
		r.logger.Error("step halted filter execution",
			slog.String("filter_type", meta.FilterType),
			slog.String("step", resolved.ref),
			slog.String("message", term.Message))
		span.SetStatus(codes.Error, term.Message)
		return Result{}, false, err
	}

	if failSilently {
		r.logger.Error("step failed, continuing execution",
			slog.String("filter_type", meta.FilterType),
			slog.String("step", resolved.ref),
			slog.String("error", err.Error()))
		return Result{}, false, nil
	}

	r.logger.Error("step failed, aborting pipeline",
		slog.String("filter_type", meta.FilterType),
		slog.String("step", resolved.ref),
		slog.String("error", err.Error()))
	span.SetStatus(codes.Error, err.Error())
	return Result{}, false, err
}

func (r *Runner) record(ctx context.Context, runID, filterType string, cfg config.PipelineConfig, start time.Time, result Result, runErr error) {
	if r.recorder == nil {
		return
	}

	rec := RunRecord{
		ID:         runID,
		FilterType: filterType,
		Outcome:    OutcomeCompleted,
		StoppedBy:  result.StoppedBy,
		StepCount:  len(cfg.Steps),
		Duration:   time.Since(start),
		CreatedAt:  start,
	}
	switch {
	case runErr != nil:
		rec.Outcome = OutcomeFailed
		rec.Error = runErr.Error()
	case result.Stopped():
		rec.Outcome = OutcomeStopped
	}

	if err := r.recorder.Record(ctx, rec); err != nil {
		r.logger.Error("failed to record filter run",
			slog.String("filter_type", filterType),
			slog.String("error", err.Error()))
	}
}
