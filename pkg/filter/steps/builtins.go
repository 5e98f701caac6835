package steps

import (
	"fmt"
	"time"

	"github.com/openedx/openedx-filters/pkg/filter"
	"github.com/openedx/openedx-filters/pkg/filter/registry"
)

// RegisterBuiltins registers the built-in steps in reg. Hosts call this once
// before wiring a runner; it replaces init-based side effects so tests can
// use isolated registries.
func RegisterBuiltins(reg *registry.Registry) {
	reg.Register(WebhookRef, WebhookFactory)
	reg.Register(LoggingRef, func(meta filter.Metadata) (filter.Step, error) {
		return NewLoggingStep(nil, meta), nil
	})
}

// WebhookFactory builds a webhook step from the pipeline's extra
// configuration. Expected shape:
//
//	org.openedx.learning.course.enrollment.started.v1:
//	  pipeline:
//	    - openedx.steps.webhook
//	  webhook:
//	    url: https://hooks.example.com/enrollment
//	    timeout: 3s
//	    retries: 2
//	    fail_open: true
//	    headers:
//	      Authorization: Bearer ...
func WebhookFactory(meta filter.Metadata) (filter.Step, error) {
	raw, ok := meta.Extra["webhook"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("webhook step requires a webhook section in the filter's extra config")
	}

	cfg := WebhookConfig{}
	if url, ok := raw["url"].(string); ok {
		cfg.URL = url
	}
	if t, ok := raw["timeout"].(string); ok {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook timeout %q: %w", t, err)
		}
		cfg.Timeout = d
	}
	cfg.Retries = intValue(raw["retries"])
	if fo, ok := raw["fail_open"].(bool); ok {
		cfg.FailOpen = fo
	}
	if hdrs, ok := raw["headers"].(map[string]any); ok {
		cfg.Headers = make(map[string]string, len(hdrs))
		for k, v := range hdrs {
			if s, ok := v.(string); ok {
				cfg.Headers[k] = s
			}
		}
	}

	return NewWebhookStep(cfg, meta)
}

// intValue tolerates the integer types YAML decoders produce.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
