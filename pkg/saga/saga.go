// Package saga runs a sequence of dependent remote writes that cannot share a
// transaction. Each step may declare a compensation. When a step fails, the
// compensations of the steps that already completed run in reverse order;
// steps without a compensation stay committed.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ActionFunc is a forward or compensating action of a step.
type ActionFunc func(ctx context.Context) error

// Step is a single named action of a saga.
type Step struct {
	Name       string
	Do         ActionFunc
	Compensate ActionFunc
}

// StepError reports the step that failed together with what is left committed.
type StepError struct {
	Saga      string
	Step      string
	Completed []string
	// Compensated lists completed steps whose compensation succeeded.
	Compensated []string
	Err         error
	// CompensationErr joins every compensation that failed.
	CompensationErr error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga %s: step %s failed", e.Saga, e.Step)
	if len(e.Completed) > 0 {
		fmt.Fprintf(&b, " after [%s]", strings.Join(e.Completed, ", "))
	}
	if len(e.Compensated) > 0 {
		fmt.Fprintf(&b, ", compensated [%s]", strings.Join(e.Compensated, ", "))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.CompensationErr != nil {
		fmt.Fprintf(&b, " (compensation failed: %v)", e.CompensationErr)
	}
	return b.String()
}

func (e *StepError) Unwrap() []error {
	if e.CompensationErr != nil {
		return []error{e.Err, e.CompensationErr}
	}
	return []error{e.Err}
}

// Saga is an ordered list of steps.
type Saga struct {
	name  string
	steps []Step
}

// New creates an empty saga with the given name.
func New(name string) *Saga {
	return &Saga{name: name}
}

// Step appends a step without compensation.
func (s *Saga) Step(name string, do ActionFunc) *Saga {
	s.steps = append(s.steps, Step{Name: name, Do: do})
	return s
}

// StepWithCompensation appends a step whose effect is undone if a later step fails.
func (s *Saga) StepWithCompensation(name string, do, compensate ActionFunc) *Saga {
	s.steps = append(s.steps, Step{Name: name, Do: do, Compensate: compensate})
	return s
}

// Run executes the steps in order and stops at the first failure.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			return s.fail(ctx, step, completed, err)
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) fail(ctx context.Context, failed Step, completed []Step, err error) error {
	stepErr := &StepError{
		Saga:      s.name,
		Step:      failed.Name,
		Completed: make([]string, 0, len(completed)),
		Err:       err,
	}
	for _, step := range completed {
		stepErr.Completed = append(stepErr.Completed, step.Name)
	}

	var compErrs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if cErr := step.Compensate(ctx); cErr != nil {
			compErrs = append(compErrs, fmt.Errorf("compensate %s: %w", step.Name, cErr))
			continue
		}
		stepErr.Compensated = append(stepErr.Compensated, step.Name)
	}
	stepErr.CompensationErr = errors.Join(compErrs...)

	return stepErr
}
