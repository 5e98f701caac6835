package steps

import (
	"context"
	"log/slog"
	"sort"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// LoggingRef is the step reference built-in registration uses for the
// logging step.
const LoggingRef = "openedx.steps.logging"

// LoggingStep logs the bag's keys and continues unchanged. The level comes
// from the pipeline's extra configuration ("log_level": "debug" or "info"),
// matching the log-level knob operators already attach to filter config.
type LoggingStep struct {
	logger *slog.Logger
	level  slog.Level
	meta   filter.Metadata
}

// NewLoggingStep creates a logging step for meta. A nil logger falls back to
// slog.Default.
func NewLoggingStep(logger *slog.Logger, meta filter.Metadata) *LoggingStep {
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if raw, ok := meta.Extra["log_level"].(string); ok && raw == "debug" {
		level = slog.LevelDebug
	}
	return &LoggingStep{logger: logger, level: level, meta: meta}
}

// Name returns the step identifier.
func (s *LoggingStep) Name() string { return LoggingRef }

// RunFilter logs the accumulated bag keys. Values are deliberately omitted;
// bags can carry sensitive data.
func (s *LoggingStep) RunFilter(ctx context.Context, bag filter.Bag) (filter.StepOutput, error) {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.logger.Log(ctx, s.level, "filter pipeline arguments",
		slog.String("filter_type", s.meta.FilterType),
		slog.Any("keys", keys))

	return filter.Continue(nil), nil
}

var _ filter.Step = (*LoggingStep)(nil)
