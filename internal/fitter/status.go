package fitter

import "fmt"

// Status is the termination state of a run.
type Status int

const (
	StatusRunning Status = iota
	StatusWalltime
	StatusConverged
	StatusExhausted
	StatusInterrupted
	StatusDiscarded
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWalltime:
		return "walltime exceeded"
	case StatusConverged:
		return "converged"
	case StatusExhausted:
		return "iterations exhausted"
	case StatusInterrupted:
		return "interrupted"
	case StatusDiscarded:
		return "discarded"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Done reports whether s ends a run.
func (s Status) Done() bool { return s != StatusRunning }

// Phase names the part of the run an iteration belongs to.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseBurnIn     Phase = "burn-in"
	PhaseProduction Phase = "production"
)
