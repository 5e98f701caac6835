package filter

import (
	"context"
	"time"
)

// RunOutcome classifies how a pipeline run ended.
type RunOutcome string

const (
	// OutcomeCompleted means every step ran and the accumulated bag was
	// returned.
	OutcomeCompleted RunOutcome = "completed"
	// OutcomeStopped means a step short-circuited the pipeline with a
	// custom value.
	OutcomeStopped RunOutcome = "stopped"
	// OutcomeFailed means the run aborted with a propagated error.
	OutcomeFailed RunOutcome = "failed"
)

// RunRecord describes one pipeline run for observability purposes. It never
// includes bag contents, which may hold sensitive data.
type RunRecord struct {
	ID         string
	FilterType string
	Outcome    RunOutcome
	StoppedBy  string
	Error      string
	StepCount  int
	Duration   time.Duration
	CreatedAt  time.Time
}

// RunRecorder receives a record per pipeline run. The runlog package provides
// a SQLite-backed implementation.
type RunRecorder interface {
	Record(ctx context.Context, rec RunRecord) error
}
