package filter

import "context"

// Step is one configured unit of pipeline logic. Name identifies the step in
// logs and run records; it is usually the reference the step was registered
// under.
type Step interface {
	Name() string
	RunFilter(ctx context.Context, bag Bag) (StepOutput, error)
}

// Metadata is the construction metadata handed to step factories before the
// pipeline runs: the filter type being executed, the full ordered list of
// configured step references, and any extra operator configuration beyond
// pipeline and fail_silently.
type Metadata struct {
	FilterType string
	Pipeline   []string
	Extra      map[string]any
}

// StepFactory builds a step for one pipeline run. Factories let steps that
// need run metadata construct themselves per invocation; plain-function steps
// ignore the metadata entirely.
type StepFactory func(meta Metadata) (Step, error)

// StepFunc adapts a bare function to the step contract.
type StepFunc func(ctx context.Context, bag Bag) (StepOutput, error)

// FuncStep wraps fn as a Step with the given name.
func FuncStep(name string, fn StepFunc) Step {
	return funcStep{name: name, fn: fn}
}

type funcStep struct {
	name string
	fn   StepFunc
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) RunFilter(ctx context.Context, bag Bag) (StepOutput, error) {
	return s.fn(ctx, bag)
}

// StepOutput is the tagged result of one step: either continue with a set of
// bag updates, or stop the pipeline with a custom value.
type StepOutput struct {
	stopped bool
	updates Bag
	value   any
}

// Continue produces an output that merges updates into the accumulated bag
// and lets the pipeline proceed. Continue(nil) means "no changes".
func Continue(updates Bag) StepOutput {
	return StepOutput{updates: updates}
}

// Stop produces an output that terminates the pipeline immediately; value
// becomes the overall pipeline result and no further steps run.
func Stop(value any) StepOutput {
	return StepOutput{stopped: true, value: value}
}

// Stopped reports whether the output short-circuits the pipeline.
func (o StepOutput) Stopped() bool { return o.stopped }

// Updates returns the bag changes for a continuing output.
func (o StepOutput) Updates() Bag { return o.updates }

// Value returns the short-circuit value for a stopping output.
func (o StepOutput) Value() any { return o.value }
