// Package steps provides built-in pipeline steps.
package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// WebhookRef is the step reference built-in registration uses for the
// webhook step.
const WebhookRef = "openedx.steps.webhook"

// WebhookStep forwards the argument bag to an external HTTP endpoint and
// interprets the JSON reply as a step output. It lets operators plug
// out-of-process logic into a pipeline without writing Go.
type WebhookStep struct {
	name     string
	url      string
	retries  int
	failOpen bool
	headers  map[string]string
	meta     filter.Metadata
	client   *http.Client
}

// WebhookConfig configures a webhook step.
type WebhookConfig struct {
	// Name identifies the step in logs; defaults to WebhookRef.
	Name string
	// URL is the endpoint POSTed to. Required.
	URL string
	// Timeout bounds one HTTP attempt. Defaults to 5s.
	Timeout time.Duration
	// Retries is the number of additional attempts after a failure.
	Retries int
	// FailOpen treats an exhausted webhook as Continue(nil) instead of an
	// error. Default is fail-closed: the error surfaces and the pipeline's
	// fail_silently policy decides what happens.
	FailOpen bool
	// Headers are extra request headers.
	Headers map[string]string
	// Transport overrides the HTTP transport; tests use it to replay
	// recorded interactions.
	Transport http.RoundTripper
}

// webhookRequest is the JSON body sent to the endpoint.
type webhookRequest struct {
	FilterType string         `json:"filter_type"`
	Pipeline   []string       `json:"pipeline"`
	Bag        filter.Bag     `json:"bag"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// webhookResponse is the JSON body expected back.
//
//   - action "continue" (or empty): merge updates and keep going
//   - action "stop": short-circuit the pipeline with value
//   - action "terminate": halt the host operation with a termination error
//     built from message, redirect_to, status_code, and attrs
type webhookResponse struct {
	Action     string         `json:"action"`
	Updates    filter.Bag     `json:"updates,omitempty"`
	Value      any            `json:"value,omitempty"`
	Message    string         `json:"message,omitempty"`
	RedirectTo string         `json:"redirect_to,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// NewWebhookStep creates a webhook step bound to meta. The metadata is
// serialized into every request so the endpoint knows which filter and
// pipeline it is participating in.
func NewWebhookStep(cfg WebhookConfig, meta filter.Metadata) (*WebhookStep, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook step requires a url")
	}

	name := cfg.Name
	if name == "" {
		name = WebhookRef
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &WebhookStep{
		name:     name,
		url:      cfg.URL,
		retries:  cfg.Retries,
		failOpen: cfg.FailOpen,
		headers:  cfg.Headers,
		meta:     meta,
		client:   &http.Client{Timeout: timeout, Transport: cfg.Transport},
	}, nil
}

// Name returns the step identifier.
func (s *WebhookStep) Name() string { return s.name }

// RunFilter executes the webhook call, retrying transport failures.
func (s *WebhookStep) RunFilter(ctx context.Context, bag filter.Bag) (filter.StepOutput, error) {
	var lastErr error

	attempts := s.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := s.doRequest(ctx, bag)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if s.failOpen {
		return filter.Continue(nil), nil
	}
	return filter.StepOutput{}, fmt.Errorf("webhook step %s: %w", s.name, lastErr)
}

func (s *WebhookStep) doRequest(ctx context.Context, bag filter.Bag) (filter.StepOutput, error) {
	body, err := json.Marshal(webhookRequest{
		FilterType: s.meta.FilterType,
		Pipeline:   s.meta.Pipeline,
		Bag:        bag,
		Extra:      s.meta.Extra,
	})
	if err != nil {
		return filter.StepOutput{}, fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return filter.StepOutput{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return filter.StepOutput{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return filter.StepOutput{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return filter.StepOutput{}, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var wr webhookResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		return filter.StepOutput{}, fmt.Errorf("unmarshal webhook response: %w", err)
	}

	switch wr.Action {
	case "", "continue":
		return filter.Continue(wr.Updates), nil
	case "stop":
		return filter.Stop(wr.Value), nil
	case "terminate":
		term := filter.NewTermination(wr.Message)
		term.RedirectTo = wr.RedirectTo
		term.StatusCode = wr.StatusCode
		for k, v := range wr.Attrs {
			term.WithAttr(k, v)
		}
		return filter.StepOutput{}, term
	default:
		return filter.StepOutput{}, fmt.Errorf("invalid action from webhook: %s", wr.Action)
	}
}

var _ filter.Step = (*WebhookStep)(nil)
