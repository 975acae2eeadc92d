package fitter

import (
	"errors"
	"fmt"
)

var (
	// ErrInitFailed indicates the Initializer could not collect enough
	// finite draws within its attempt budget.
	ErrInitFailed = errors.New("fitter: initialization failed")

	// ErrInterrupted indicates a run cancelled before a result could be
	// assembled.
	ErrInterrupted = errors.New("fitter: interrupted")

	// ErrPoolFailure indicates a pool or model error aborted the run.
	ErrPoolFailure = errors.New("fitter: pool failure")

	// ErrInvalidConfig indicates a Config that cannot be run.
	ErrInvalidConfig = errors.New("fitter: invalid configuration")
)

// IterationError reports the iteration and phase at which the pool failed.
type IterationError struct {
	Iteration int
	Phase     string
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("fitter: iteration %d (%s): %v", e.Iteration, e.Phase, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }

// Is makes every IterationError match ErrPoolFailure.
func (e *IterationError) Is(target error) bool { return target == ErrPoolFailure }

// InitError reports the rung that could not be filled.
type InitError struct {
	Temperature int
	Attempts    int
	Collected   int
}

func (e *InitError) Error() string {
	return fmt.Sprintf("fitter: temperature %d: %d walkers after %d draws: %v",
		e.Temperature, e.Collected, e.Attempts, ErrInitFailed)
}

func (e *InitError) Unwrap() error { return ErrInitFailed }
