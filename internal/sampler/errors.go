package sampler

import "errors"

// Domain errors for sampler operations.
var (
	// ErrInvalidConfig indicates a kernel or ensemble configuration that
	// cannot be sampled (too few walkers, no temperatures).
	ErrInvalidConfig = errors.New("sampler: invalid configuration")

	// ErrDimensionMismatch indicates walkers with differing dimensions.
	ErrDimensionMismatch = errors.New("sampler: dimension mismatch between walkers")

	// ErrShortResult indicates the pool returned fewer outcomes than tasks.
	ErrShortResult = errors.New("sampler: pool returned a short result")
)
