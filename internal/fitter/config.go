package fitter

import (
	"fmt"
	"time"

	"github.com/san-kum/dynfit/internal/convergence"
	"github.com/san-kum/dynfit/internal/sampler"
)

// Config is the validated run configuration.
type Config struct {
	Iterations   int
	Walkers      int
	Temperatures int
	LadderStep   float64

	// Burn and PostBurn are mutually exclusive; nil derives the split.
	Burn     *int
	PostBurn *int

	Frack     bool
	FrackStep int

	DrawAboveLikelihood bool
	MaxDrawAttempts     int

	// Walltime bounds the run; zero means unbounded.
	Walltime time.Duration
	// Converge keeps sampling in chunks until the PSRF drops below the
	// threshold and Iterations have elapsed.
	Converge bool
	// MaxIterations caps a Converge run; zero means unbounded.
	MaxIterations int
	ChunkSize     int

	// Softening scales score differences when choosing walkers to frack.
	Softening float64
	// Jitter is the standard deviation of the repair perturbation.
	Jitter float64
	// RepairFloor is the minimum distance below the median that marks a
	// walker as divergent; zero means the walker count.
	RepairFloor float64

	Monitor convergence.Monitor
	Seed    int64
}

func DefaultConfig() Config {
	return Config{
		Iterations:      1000,
		Walkers:         40,
		Temperatures:    1,
		LadderStep:      sampler.DefaultLadderStep,
		Frack:           true,
		FrackStep:       20,
		MaxDrawAttempts: 10000,
		ChunkSize:       100,
		Softening:       0.1,
		Jitter:          0.01,
		Monitor:         convergence.DefaultMonitor(),
		Seed:            1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	case c.Walkers < 2:
		return fmt.Errorf("%w: need at least 2 walkers, got %d", ErrInvalidConfig, c.Walkers)
	case c.Temperatures < 1:
		return fmt.Errorf("%w: need at least 1 temperature, got %d", ErrInvalidConfig, c.Temperatures)
	case c.Burn != nil && c.PostBurn != nil:
		return fmt.Errorf("%w: burn and post-burn are mutually exclusive", ErrInvalidConfig)
	case c.Frack && c.FrackStep < 1:
		return fmt.Errorf("%w: frack step must be positive, got %d", ErrInvalidConfig, c.FrackStep)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.MaxDrawAttempts < 1:
		return fmt.Errorf("%w: max draw attempts must be positive, got %d", ErrInvalidConfig, c.MaxDrawAttempts)
	case c.Walltime < 0:
		return fmt.Errorf("%w: negative walltime", ErrInvalidConfig)
	}
	return nil
}

// BurnIn returns the burn-in length and production length of the run.
func (c Config) BurnIn() (burnIn, post int) {
	return sampler.BurnIn(c.Iterations, c.Burn, c.PostBurn)
}

func (c Config) repairFloor() float64 {
	if c.RepairFloor > 0 {
		return c.RepairFloor
	}
	return float64(c.Walkers)
}
