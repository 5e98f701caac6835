// Package config defines the pipeline configuration contract consumed by the
// filter runner, plus in-memory and file-backed sources.
package config

import (
	"fmt"
)

// DefaultFailSilently is the policy applied when a configuration entry does
// not set fail_silently explicitly. The default is permissive: unexpected
// step errors are logged and skipped. Operators who want a broken step to
// abort the host operation must opt in with fail_silently: false.
const DefaultFailSilently = true

// PipelineConfig is the per-filter-type configuration tuple.
type PipelineConfig struct {
	// Steps is the ordered list of step references. Order defines execution
	// order; duplicates are allowed and executed each time.
	Steps []string

	// FailSilently governs unexpected step errors: true logs and continues,
	// false propagates. Termination errors ignore it entirely.
	FailSilently bool

	// Extra holds any additional operator-supplied options. The engine
	// forwards them to steps as construction metadata and never reads them.
	Extra map[string]any
}

// Source looks up pipeline configuration by filter type. The runner calls
// Lookup fresh on every run; sources must be safe for concurrent use.
type Source interface {
	Lookup(filterType string) (PipelineConfig, error)
}

// Normalize converts a raw configuration entry into a PipelineConfig. Four
// shapes are accepted:
//
//   - a map with a "pipeline" key, an optional "fail_silently" bool, and any
//     number of extra keys
//   - a bare list of step references
//   - a single step reference string
//   - nil (no configuration, a no-op pipeline)
func Normalize(raw any) (PipelineConfig, error) {
	cfg := PipelineConfig{FailSilently: DefaultFailSilently}

	switch v := raw.(type) {
	case nil:
		return cfg, nil

	case string:
		cfg.Steps = []string{v}
		return cfg, nil

	case []string:
		cfg.Steps = append([]string(nil), v...)
		return cfg, nil

	case []any:
		steps, err := toStepList(v)
		if err != nil {
			return PipelineConfig{}, err
		}
		cfg.Steps = steps
		return cfg, nil

	case map[string]any:
		for key, val := range v {
			switch key {
			case "pipeline":
				steps, err := normalizeSteps(val)
				if err != nil {
					return PipelineConfig{}, err
				}
				cfg.Steps = steps
			case "fail_silently":
				b, ok := val.(bool)
				if !ok {
					return PipelineConfig{}, fmt.Errorf("fail_silently must be a bool, got %T", val)
				}
				cfg.FailSilently = b
			default:
				if cfg.Extra == nil {
					cfg.Extra = make(map[string]any)
				}
				cfg.Extra[key] = val
			}
		}
		return cfg, nil

	default:
		return PipelineConfig{}, fmt.Errorf("unsupported filter configuration shape %T", raw)
	}
}

func normalizeSteps(val any) ([]string, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		return toStepList(v)
	default:
		return nil, fmt.Errorf("pipeline must be a list of step references, got %T", val)
	}
}

func toStepList(items []any) ([]string, error) {
	steps := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("pipeline entry %d: expected step reference string, got %T", i, item)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// MapSource is an in-memory configuration source keyed by filter type. Values
// may use any of the shapes Normalize accepts. A read-only map is safe for
// concurrent lookups.
type MapSource map[string]any

// Lookup implements Source.
func (s MapSource) Lookup(filterType string) (PipelineConfig, error) {
	return Normalize(s[filterType])
}
