// Package pipeline runs an ordered step sequence with per-step timing, skip
// flags, and event publication. The deploy command assembles its steps here
// instead of hand-rolling the loop.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/util"
)

type Step struct {
	Name string
	// Skip marks the step as excluded for this run (e.g. --skip-auth).
	Skip bool
	// ContinueOnError lets the sequence keep going when this step fails;
	// the failure still surfaces in the final error.
	ContinueOnError bool
	Run             func(ctx context.Context) error
}

type StepResult struct {
	Name     string
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Runner executes steps strictly in order. A failing step aborts the run
// unless it opted into ContinueOnError.
type Runner struct {
	name  string
	steps []Step
}

func NewRunner(name string, steps ...Step) *Runner {
	return &Runner{name: name, steps: steps}
}

func (r *Runner) Execute(ctx context.Context) ([]StepResult, error) {
	total := len(r.steps)
	results := make([]StepResult, 0, total)
	started := time.Now()
	util.Default.Printf("🚀 %s (%d steps)\n", r.name, total)

	var deferred error
	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if step.Skip {
			util.Default.Printf("⏭️  [%d/%d] %s (skipped)\n", i+1, total, step.Name)
			events.GlobalBus.Publish(events.EventPipelineStep, r.name, step.Name, "skipped")
			results = append(results, StepResult{Name: step.Name, Skipped: true})
			continue
		}

		util.Default.Printf("▶️  [%d/%d] %s...\n", i+1, total, step.Name)
		stepStart := time.Now()
		err := step.Run(ctx)
		dur := time.Since(stepStart).Round(time.Millisecond)
		results = append(results, StepResult{Name: step.Name, Err: err, Duration: dur})

		if err != nil {
			util.Default.Printf("❌ [%d/%d] %s failed after %s: %v\n", i+1, total, step.Name, dur, err)
			events.GlobalBus.Publish(events.EventPipelineStep, r.name, step.Name, "failed")
			if !step.ContinueOnError {
				return results, fmt.Errorf("step %q failed: %w", step.Name, err)
			}
			if deferred == nil {
				deferred = err
			}
			continue
		}
		util.Default.Printf("✅ [%d/%d] %s (%s)\n", i+1, total, step.Name, dur)
		events.GlobalBus.Publish(events.EventPipelineStep, r.name, step.Name, "completed")
	}

	if deferred != nil {
		return results, fmt.Errorf("%s finished with failures: %w", r.name, deferred)
	}
	util.Default.Printf("🎉 %s completed in %s\n", r.name, time.Since(started).Round(time.Millisecond))
	return results, nil
}

// PrintSummary renders the step table after a run.
func PrintSummary(results []StepResult) {
	util.Default.Printf("\n📋 Step summary:\n")
	for _, res := range results {
		switch {
		case res.Skipped:
			util.Default.Printf("   ⏭️  %-28s skipped\n", res.Name)
		case res.Err != nil:
			util.Default.Printf("   ❌ %-28s %s (%v)\n", res.Name, res.Duration, res.Err)
		default:
			util.Default.Printf("   ✅ %-28s %s\n", res.Name, res.Duration)
		}
	}
}
