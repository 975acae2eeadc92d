// Package optim provides a bounded local optimizer over the unit hypercube.
package optim

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
)

// ErrNoSolution is returned when the optimizer produced no finite point.
var ErrNoSolution = errors.New("optim: no finite solution found")

// ceiling replaces infinite objective values so the simplex arithmetic stays finite.
const ceiling = 1e300

// Settings controls a single local optimization.
type Settings struct {
	// MaxEvaluations bounds the number of objective calls.
	MaxEvaluations int
	// Jitter is the standard deviation of the seeded perturbation applied to
	// the starting point.
	Jitter float64
	// SimplexSize is the initial Nelder-Mead simplex edge.
	SimplexSize float64
	// Tolerance is the absolute function-change convergence threshold.
	Tolerance float64
	// Penalty scales the squared distance outside the unit box.
	Penalty float64
}

func DefaultSettings() Settings {
	return Settings{
		MaxEvaluations: 2000,
		Jitter:         0.001,
		SimplexSize:    0.05,
		Tolerance:      1e-10,
		Penalty:        1e4,
	}
}

// Result is the best point found and its objective value.
type Result struct {
	X           []float64
	F           float64
	Evaluations int
}

// Minimize minimizes fn inside [0,1]^n starting near x0. The objective is
// always evaluated at a clipped point; excursions outside the box are
// penalized so the simplex drifts back in.
func Minimize(fn func([]float64) float64, x0 []float64, seed int64, s Settings) (Result, error) {
	if s.MaxEvaluations <= 0 {
		s = DefaultSettings()
	}

	rng := rand.New(rand.NewSource(seed))
	start := make([]float64, len(x0))
	for i, v := range x0 {
		start[i] = clamp(v + s.Jitter*rng.NormFloat64())
	}

	objective := func(x []float64) float64 {
		clipped := make([]float64, len(x))
		excess := 0.0
		for i, v := range x {
			c := clamp(v)
			clipped[i] = c
			excess += (v - c) * (v - c)
		}
		f := fn(clipped)
		if math.IsNaN(f) || f > ceiling {
			f = ceiling
		}
		return f + s.Penalty*excess
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		FuncEvaluations: s.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Iterations: 50,
		},
	}
	method := &optimize.NelderMead{SimplexSize: s.SimplexSize}

	res, err := optimize.Minimize(problem, start, settings, method)
	if res == nil {
		if err == nil {
			err = ErrNoSolution
		}
		return Result{}, err
	}

	x := make([]float64, len(res.X))
	for i, v := range res.X {
		x[i] = clamp(v)
	}
	f := fn(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Result{}, ErrNoSolution
	}
	return Result{X: x, F: f, Evaluations: res.Stats.FuncEvaluations}, nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0.5
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
