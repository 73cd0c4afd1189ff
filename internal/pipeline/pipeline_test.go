package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var ran []string
	mk := func(name string) Step {
		return Step{Name: name, Run: func(context.Context) error {
			ran = append(ran, name)
			return nil
		}}
	}

	results, err := NewRunner("deploy", mk("check"), mk("fetch"), mk("push")).Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	want := []string{"check", "fetch", "push"}
	for i, name := range want {
		if ran[i] != name {
			t.Errorf("step %d = %s, want %s", i, ran[i], name)
		}
	}
}

func TestExecuteHonorsSkip(t *testing.T) {
	called := false
	steps := []Step{
		{Name: "auth", Skip: true, Run: func(context.Context) error {
			called = true
			return nil
		}},
		{Name: "fetch", Run: func(context.Context) error { return nil }},
	}

	results, err := NewRunner("deploy", steps...).Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("skipped step ran")
	}
	if !results[0].Skipped || results[1].Skipped {
		t.Errorf("skips recorded wrong: %+v", results)
	}
}

func TestExecuteStopsOnFailure(t *testing.T) {
	boom := errors.New("device offline")
	reached := false
	steps := []Step{
		{Name: "transfer", Run: func(context.Context) error { return boom }},
		{Name: "verify", Run: func(context.Context) error {
			reached = true
			return nil
		}},
	}

	results, err := NewRunner("deploy", steps...).Execute(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the step error", err)
	}
	if reached {
		t.Error("step after a fatal failure ran")
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("results = %+v", results)
	}
}

func TestExecuteContinueOnErrorSurfacesAtEnd(t *testing.T) {
	boom := errors.New("launch failed")
	reached := false
	steps := []Step{
		{Name: "launch", ContinueOnError: true, Run: func(context.Context) error { return boom }},
		{Name: "record", Run: func(context.Context) error {
			reached = true
			return nil
		}},
	}

	results, err := NewRunner("deploy", steps...).Execute(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want deferred step error", err)
	}
	if !reached {
		t.Error("continue-on-error did not continue")
	}
	if len(results) != 2 {
		t.Errorf("results = %+v", results)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := NewRunner("deploy", Step{Name: "check", Run: func(context.Context) error {
		ran = true
		return nil
	}}).Execute(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("step ran after cancellation")
	}
}
