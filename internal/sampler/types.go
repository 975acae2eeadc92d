package sampler

import (
	"fmt"
	"math"
)

// DefaultLadderStep is the temperature ratio between adjacent rungs.
const DefaultLadderStep = math.Sqrt2

// Walker is one position in the unit hypercube with its scores.
// LogPosterior is tempered: beta*LogLikelihood + LogPrior at its rung.
type Walker struct {
	X             []float64
	LogLikelihood float64
	LogPrior      float64
	LogPosterior  float64
}

func (w Walker) Clone() Walker {
	c := w
	c.X = make([]float64, len(w.X))
	copy(c.X, w.X)
	return c
}

// Valid reports whether the walker has a finite score.
func (w Walker) Valid() bool {
	return !math.IsNaN(w.LogPosterior) && !math.IsInf(w.LogPosterior, 0)
}

// Tempered combines a likelihood and prior at inverse temperature beta.
func Tempered(beta, logL, logP float64) float64 {
	if beta == 0 {
		return logP
	}
	return beta*logL + logP
}

// Ladder returns ntemps inverse temperatures starting at 1 and shrinking
// geometrically by step.
func Ladder(ntemps int, step float64) []float64 {
	if step <= 1 {
		step = DefaultLadderStep
	}
	betas := make([]float64, ntemps)
	for i := range betas {
		betas[i] = math.Pow(step, -float64(i))
	}
	return betas
}

// Ensemble is the live ntemps × nwalkers matrix of walkers.
type Ensemble struct {
	Betas   []float64
	Walkers [][]Walker
}

// NewEnsemble allocates an empty ensemble for the given ladder.
func NewEnsemble(betas []float64, nwalkers int) *Ensemble {
	e := &Ensemble{Betas: betas, Walkers: make([][]Walker, len(betas))}
	for t := range e.Walkers {
		e.Walkers[t] = make([]Walker, nwalkers)
	}
	return e
}

func (e *Ensemble) NumTemps() int { return len(e.Walkers) }

func (e *Ensemble) NumWalkers() int {
	if len(e.Walkers) == 0 {
		return 0
	}
	return len(e.Walkers[0])
}

func (e *Ensemble) NumDims() int {
	if e.NumWalkers() == 0 {
		return 0
	}
	return len(e.Walkers[0][0].X)
}

// Set stores a copy of x with its scores at slot (t, w).
func (e *Ensemble) Set(t, w int, x []float64, logL, logP float64) {
	pos := make([]float64, len(x))
	copy(pos, x)
	e.Walkers[t][w] = Walker{
		X:             pos,
		LogLikelihood: logL,
		LogPrior:      logP,
		LogPosterior:  Tempered(e.Betas[t], logL, logP),
	}
}

// Scores returns the tempered scores of rung t.
func (e *Ensemble) Scores(t int) []float64 {
	out := make([]float64, len(e.Walkers[t]))
	for w, wk := range e.Walkers[t] {
		out[w] = wk.LogPosterior
	}
	return out
}

func (e *Ensemble) Clone() *Ensemble {
	c := &Ensemble{Betas: append([]float64(nil), e.Betas...), Walkers: make([][]Walker, len(e.Walkers))}
	for t, row := range e.Walkers {
		c.Walkers[t] = make([]Walker, len(row))
		for w, wk := range row {
			c.Walkers[t][w] = wk.Clone()
		}
	}
	return c
}

// Validate checks the ensemble shape.
func (e *Ensemble) Validate() error {
	if len(e.Walkers) == 0 || len(e.Betas) != len(e.Walkers) {
		return fmt.Errorf("%w: %d rungs for %d temperatures", ErrInvalidConfig, len(e.Walkers), len(e.Betas))
	}
	nw, nd := e.NumWalkers(), e.NumDims()
	if nw < 2 {
		return fmt.Errorf("%w: need at least 2 walkers, got %d", ErrInvalidConfig, nw)
	}
	for t, row := range e.Walkers {
		if len(row) != nw {
			return fmt.Errorf("%w: rung %d has %d walkers, want %d", ErrInvalidConfig, t, len(row), nw)
		}
		for w, wk := range row {
			if len(wk.X) != nd {
				return fmt.Errorf("%w: walker (%d,%d) has %d dims, want %d", ErrDimensionMismatch, t, w, len(wk.X), nd)
			}
		}
	}
	return nil
}

// Acceptance counts proposals and acceptances per slot for one iteration.
type Acceptance struct {
	Proposed     [][]int
	Accepted     [][]int
	SwapProposed []int
	SwapAccepted []int
}

// Reset zeroes the counters, resizing them to ntemps × nwalkers.
func (a *Acceptance) Reset(ntemps, nwalkers int) {
	if len(a.Proposed) != ntemps || (ntemps > 0 && len(a.Proposed[0]) != nwalkers) {
		a.Proposed = make([][]int, ntemps)
		a.Accepted = make([][]int, ntemps)
		for t := 0; t < ntemps; t++ {
			a.Proposed[t] = make([]int, nwalkers)
			a.Accepted[t] = make([]int, nwalkers)
		}
		a.SwapProposed = make([]int, ntemps)
		a.SwapAccepted = make([]int, ntemps)
		return
	}
	for t := range a.Proposed {
		clear(a.Proposed[t])
		clear(a.Accepted[t])
	}
	clear(a.SwapProposed)
	clear(a.SwapAccepted)
}

// Fraction returns the accepted fraction of moves proposed in rung t.
func (a *Acceptance) Fraction(t int) float64 {
	p, acc := 0, 0
	for w := range a.Proposed[t] {
		p += a.Proposed[t][w]
		acc += a.Accepted[t][w]
	}
	if p == 0 {
		return 0
	}
	return float64(acc) / float64(p)
}

// Fractions returns Fraction for every rung.
func (a *Acceptance) Fractions() []float64 {
	out := make([]float64, len(a.Proposed))
	for t := range out {
		out[t] = a.Fraction(t)
	}
	return out
}
