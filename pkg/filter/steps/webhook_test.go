package steps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"

	"github.com/openedx/openedx-filters/pkg/filter"
)

func testMeta() filter.Metadata {
	return filter.Metadata{
		FilterType: "org.openedx.test.webhook.v1",
		Pipeline:   []string{WebhookRef},
	}
}

func TestWebhookStep_Continue(t *testing.T) {
	var received webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookResponse{
			Action:  "continue",
			Updates: filter.Bag{"mode": "audit"},
		})
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	out, err := step.RunFilter(context.Background(), filter.Bag{"mode": "honor"})
	if err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	if out.Stopped() {
		t.Error("continue must not stop the pipeline")
	}
	if out.Updates()["mode"] != "audit" {
		t.Errorf("Updates = %v", out.Updates())
	}

	if received.FilterType != "org.openedx.test.webhook.v1" {
		t.Errorf("request filter_type = %q", received.FilterType)
	}
	if received.Bag["mode"] != "honor" {
		t.Errorf("request bag = %v", received.Bag)
	}
}

func TestWebhookStep_Stop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookResponse{
			Action: "stop",
			Value:  map[string]any{"body": "custom response"},
		})
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	out, err := step.RunFilter(context.Background(), filter.Bag{})
	if err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	if !out.Stopped() {
		t.Fatal("expected a stopping output")
	}
	value, _ := out.Value().(map[string]any)
	if value["body"] != "custom response" {
		t.Errorf("Value = %v", out.Value())
	}
}

func TestWebhookStep_Terminate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookResponse{
			Action:     "terminate",
			Message:    "enrollment closed",
			RedirectTo: "/closed",
			StatusCode: 403,
			Attrs:      map[string]any{"reason": "capacity"},
		})
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	_, err = step.RunFilter(context.Background(), filter.Bag{})
	term, ok := filter.AsTermination(err)
	if !ok {
		t.Fatalf("expected a termination error, got %v", err)
	}
	if term.Message != "enrollment closed" || term.RedirectTo != "/closed" || term.StatusCode != 403 {
		t.Errorf("termination = %+v", term)
	}
	if reason, _ := term.Attr("reason"); reason != "capacity" {
		t.Errorf("reason attr = %v", reason)
	}
}

func TestWebhookStep_RetriesExhausted(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL, Retries: 1}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	if _, err := step.RunFilter(context.Background(), filter.Bag{}); err == nil {
		t.Fatal("expected an error after exhausted retries")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWebhookStep_FailOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL, FailOpen: true}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	out, err := step.RunFilter(context.Background(), filter.Bag{})
	if err != nil {
		t.Fatalf("fail-open webhook must not error, got %v", err)
	}
	if out.Stopped() || len(out.Updates()) != 0 {
		t.Errorf("fail-open webhook must be a no-op, got %+v", out)
	}
}

func TestWebhookStep_InvalidAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"action": "explode"})
	}))
	defer srv.Close()

	step, err := NewWebhookStep(WebhookConfig{URL: srv.URL}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	if _, err := step.RunFilter(context.Background(), filter.Bag{}); err == nil {
		t.Error("expected an error for an unknown action")
	}
}

func TestWebhookStep_RequiresURL(t *testing.T) {
	if _, err := NewWebhookStep(WebhookConfig{}, testMeta()); err == nil {
		t.Error("expected an error when no URL is configured")
	}
}

// TestWebhookStep_Replay exercises the webhook against a recorded
// interaction instead of a live server.
func TestWebhookStep_Replay(t *testing.T) {
	cassettePath := filepath.Join("testdata", "fixtures", "webhook_continue")
	r, err := recorder.NewAsMode(cassettePath, recorder.ModeReplaying, nil)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}
	defer func() {
		if err := r.Stop(); err != nil {
			t.Errorf("stop recorder: %v", err)
		}
	}()
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	step, err := NewWebhookStep(WebhookConfig{
		URL:       "https://hooks.example.com/enrollment",
		Transport: r,
	}, testMeta())
	if err != nil {
		t.Fatalf("NewWebhookStep: %v", err)
	}

	out, err := step.RunFilter(context.Background(), filter.Bag{"mode": "honor"})
	if err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	if out.Updates()["mode"] != "audit" {
		t.Errorf("Updates = %v", out.Updates())
	}
}

func TestWebhookFactory(t *testing.T) {
	meta := filter.Metadata{
		FilterType: "org.openedx.test.webhook.v1",
		Extra: map[string]any{
			"webhook": map[string]any{
				"url":       "https://hooks.example.com/x",
				"timeout":   "3s",
				"retries":   2,
				"fail_open": true,
				"headers":   map[string]any{"Authorization": "Bearer tok"},
			},
		},
	}

	step, err := WebhookFactory(meta)
	if err != nil {
		t.Fatalf("WebhookFactory: %v", err)
	}
	ws, ok := step.(*WebhookStep)
	if !ok {
		t.Fatalf("step type %T", step)
	}
	if ws.url != "https://hooks.example.com/x" || ws.retries != 2 || !ws.failOpen {
		t.Errorf("step = %+v", ws)
	}
	if ws.headers["Authorization"] != "Bearer tok" {
		t.Errorf("headers = %v", ws.headers)
	}
	if ws.client.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", ws.client.Timeout)
	}
}

func TestWebhookFactory_MissingSection(t *testing.T) {
	if _, err := WebhookFactory(filter.Metadata{Extra: map[string]any{}}); err == nil {
		t.Fatal("expected an error without a webhook section")
	}
}

func TestWebhookFactory_BadTimeout(t *testing.T) {
	_, err := WebhookFactory(filter.Metadata{Extra: map[string]any{
		"webhook": map[string]any{"url": "https://x", "timeout": "soon"},
	}})
	if err == nil {
		t.Error("expected an error for an unparsable timeout")
	}
}
