package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
)

// StepEvent represents a progress event during a run.
type StepEvent struct {
	Index    int
	Total    int
	Step     string
	Kind     ir.StepKind
	Status   string // "started", "completed", "failed"
	Outcome  ir.Outcome
	Duration time.Duration
}

// StepCallback is called for each step event if set.
type StepCallback func(event StepEvent)

// AbortError is returned when a step ends in FatalAbort.
type AbortError struct {
	Step    string
	Message string
	Err     error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Run executes every step in order.
func (e *Engine) Run(ctx context.Context) (*ir.RunRecord, error) {
	return e.RunWithCallback(ctx, nil)
}

// RunWithCallback executes every step in order, stopping at the first
// FatalAbort. The returned record covers the steps that ran, even on error.
func (e *Engine) RunWithCallback(ctx context.Context, callback StepCallback) (*ir.RunRecord, error) {
	emit := func(event StepEvent) {
		if callback != nil {
			callback(event)
		}
	}

	record := &ir.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		UnitPath:  e.cfg.UnitPath,
	}
	finish := func() *ir.RunRecord {
		record.FinishedAt = time.Now().UTC().Format(time.RFC3339)
		record.Arch = e.arch
		record.GPU = e.gpuName
		record.PackageVersion = e.pkgVersion
		return record
	}

	steps := e.Steps()
	gated := false
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			record.Aborted = true
			return finish(), fmt.Errorf("provisioning interrupted before %s: %w", step.Name, err)
		}

		if step.Kind != ir.KindCheck && !gated {
			gated = true
			if e.BeforeInstall != nil {
				if err := e.BeforeInstall(); err != nil {
					logging.Error("cannot start installation", "step", step.Name, "error", err)
					record.Aborted = true
					return finish(), &AbortError{Step: step.Name, Message: "cannot start installation", Err: err}
				}
			}
		}

		start := time.Now()
		event := StepEvent{Index: i + 1, Total: len(steps), Step: step.Name, Kind: step.Kind, Status: "started"}
		emit(event)

		stepCtx, cancel := WithTimeout(ctx, e.StepTimeout)
		res := step.Run(stepCtx)
		cancel()

		res.Step = step.Name
		record.Results = append(record.Results, &res)
		event.Outcome = res.Outcome
		event.Duration = time.Since(start)

		switch res.Outcome {
		case ir.FatalAbort:
			if res.Err != nil {
				logging.Error(res.Message, "step", step.Name, "error", res.Err)
			} else {
				logging.Error(res.Message, "step", step.Name)
			}
			event.Status = "failed"
			emit(event)
			record.Aborted = true
			return finish(), &AbortError{Step: step.Name, Message: res.Message, Err: res.Err}
		case ir.WarnContinue:
			logging.Warn(res.Message, "step", step.Name)
		default:
			logging.Info(res.Message, "step", step.Name)
		}

		event.Status = "completed"
		emit(event)
	}

	return finish(), nil
}
