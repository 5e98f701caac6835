package authentication

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/openedx/openedx-filters/pkg/filter"
	"github.com/openedx/openedx-filters/pkg/filter/config"
	"github.com/openedx/openedx-filters/pkg/filter/registry"
)

func TestSessionJWTCreationRequested_EnrichesPayload(t *testing.T) {
	cfg := config.MapSource{
		SessionJWTCreationRequestedType: []string{"test.add_roles"},
	}
	reg := registry.New()
	reg.RegisterFunc("test.add_roles", func(ctx context.Context, bag filter.Bag) (filter.StepOutput, error) {
		payload, _ := filter.Value[map[string]any](bag, "payload")
		updated := make(map[string]any, len(payload)+1)
		for k, v := range payload {
			updated[k] = v
		}
		updated["roles"] = []string{"staff"}
		return filter.Continue(filter.Bag{"payload": updated}), nil
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := filter.NewRunner(cfg, reg, filter.WithLogger(logger))
	f := NewSessionJWTCreationRequested(runner)

	payload, user, err := f.RunFilter(context.Background(), map[string]any{"sub": "42"}, "jdoe")
	if err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	if payload["sub"] != "42" {
		t.Errorf("existing claims must survive, got %v", payload)
	}
	roles, _ := payload["roles"].([]string)
	if len(roles) != 1 || roles[0] != "staff" {
		t.Errorf("roles = %v", payload["roles"])
	}
	if user != "jdoe" {
		t.Errorf("user = %v", user)
	}
}

func TestSessionJWTCreationRequested_NoPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := filter.NewRunner(config.MapSource{}, registry.New(), filter.WithLogger(logger))
	f := NewSessionJWTCreationRequested(runner)

	payload, user, err := f.RunFilter(context.Background(), map[string]any{"sub": "42"}, "jdoe")
	if err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	if payload["sub"] != "42" || user != "jdoe" {
		t.Errorf("got (%v, %v)", payload, user)
	}
}
