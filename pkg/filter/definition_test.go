package filter

import (
	"context"
	"testing"
)

func TestDefinition_RunProtected_SensitiveRoundTrip(t *testing.T) {
	var seen Bag
	factory := func(Metadata) (Step, error) {
		return FuncStep("spy", func(ctx context.Context, bag Bag) (StepOutput, error) {
			inner, _ := bag["form_data"].(Bag)
			seen = inner.Clone()
			return Continue(Bag{"form_data": Bag{"username": "u2"}}), nil
		}), nil
	}

	r := newTestRunner(
		map[string]any{"org.openedx.test.protected.v1": []any{"spy"}},
		mapResolver{"spy": factory},
	)

	def := Definition{
		Type:      "org.openedx.test.protected.v1",
		Sensitive: []string{"password"},
	}
	args := Bag{"form_data": Bag{"password": "p", "username": "u"}}

	res, err := def.RunProtected(context.Background(), r, "form_data", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := seen["password"]; ok {
		t.Error("pipeline steps must never see sensitive fields")
	}
	if seen["username"] != "u" {
		t.Errorf("step saw username = %v, want %q", seen["username"], "u")
	}

	form, _ := res.Bag["form_data"].(Bag)
	if form["password"] != "p" {
		t.Errorf("password = %v, want preserved verbatim", form["password"])
	}
	if form["username"] != "u2" {
		t.Errorf("username = %v, want the pipeline's rewrite", form["username"])
	}

	// The caller's original form data is untouched.
	orig, _ := args["form_data"].(Bag)
	if orig["username"] != "u" || orig["password"] != "p" {
		t.Errorf("caller's form data mutated: %v", orig)
	}
}

func TestDefinition_RunProtected_NoSensitiveKeysDeclared(t *testing.T) {
	factory := func(Metadata) (Step, error) {
		return FuncStep("noop", func(ctx context.Context, bag Bag) (StepOutput, error) {
			return Continue(nil), nil
		}), nil
	}

	r := newTestRunner(
		map[string]any{"org.openedx.test.unprotected.v1": []any{"noop"}},
		mapResolver{"noop": factory},
	)

	def := Definition{Type: "org.openedx.test.unprotected.v1"}
	args := Bag{"form_data": Bag{"password": "p"}}

	res, err := def.RunProtected(context.Background(), r, "form_data", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	form, _ := res.Bag["form_data"].(Bag)
	if form["password"] != "p" {
		t.Errorf("form data = %v", form)
	}
}
