package convergence

import "errors"

var (
	// ErrChainTooShort indicates no lag satisfies the window criterion.
	ErrChainTooShort = errors.New("convergence: chain too short for window")

	// ErrZeroVariance indicates every trace is constant.
	ErrZeroVariance = errors.New("convergence: zero variance trace")
)
