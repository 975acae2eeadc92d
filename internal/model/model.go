// Package model defines the adapter contract between the sampler and a
// statistical model.
//
// Every parameter vector is a point in the unit hypercube: each coordinate
// is a fraction in [0,1] and the model owns the mapping to physical units.
// Implementations must be safe to construct once per worker; the sampler
// never shares a Model instance between concurrent workers.
package model

import (
	"math"
	"math/rand"
)

// Draw is a candidate starting position together with its scores.
type Draw struct {
	X             []float64
	LogLikelihood float64
	LogPrior      float64
}

// Score returns the untempered log-posterior of the draw.
func (d Draw) Score() float64 {
	return d.LogLikelihood + d.LogPrior
}

// Valid reports whether the draw has a finite score.
func (d Draw) Valid() bool {
	s := d.Score()
	return !math.IsNaN(s) && !math.IsInf(s, 0)
}

// FrackResult is the outcome of a local optimization. Fun is the negated
// log-likelihood at X.
type FrackResult struct {
	X   []float64
	Fun float64
}

type Model interface {
	Name() string
	NumDims() int
	// Likelihood returns the log-likelihood at x; it may be -Inf.
	Likelihood(x []float64) float64
	// Prior returns the log-prior at x; it may be -Inf.
	Prior(x []float64) float64
	// DrawWalker draws a starting position. When test is true the draw is
	// scored, otherwise the scores are left at zero.
	DrawWalker(rng *rand.Rand, test bool) (Draw, error)
	// Frack minimizes the negative log-likelihood starting from x.
	Frack(x []float64, seed int64) (FrackResult, error)
}

// Factory builds a fresh Model. It is called once per pool worker.
type Factory func() (Model, error)

// Clip returns a copy of x with every coordinate clamped into [0,1].
func Clip(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case math.IsNaN(v):
			out[i] = 0.5
		case v < 0:
			out[i] = 0
		case v > 1:
			out[i] = 1
		default:
			out[i] = v
		}
	}
	return out
}

// InBounds reports whether every coordinate of x lies in [0,1].
func InBounds(x []float64) bool {
	for _, v := range x {
		if !(v >= 0 && v <= 1) {
			return false
		}
	}
	return true
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
