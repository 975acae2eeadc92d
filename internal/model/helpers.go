package model

import (
	"errors"
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/optim"
)

// UniformDraw draws x uniformly from the unit hypercube of m and scores it
// when test is set.
func UniformDraw(m Model, rng *rand.Rand, test bool) Draw {
	x := make([]float64, m.NumDims())
	for i := range x {
		x[i] = rng.Float64()
	}
	d := Draw{X: x}
	if test {
		d.LogPrior = m.Prior(x)
		d.LogLikelihood = m.Likelihood(x)
	}
	return d
}

// MinimizeFrack runs the default bounded local optimizer on the negative
// log-likelihood of m. When no finite point is found it returns x with an
// infinite Fun, which the fracker never accepts.
func MinimizeFrack(m Model, x []float64, seed int64, settings optim.Settings) (FrackResult, error) {
	res, err := optim.Minimize(func(p []float64) float64 {
		return -m.Likelihood(p)
	}, x, seed, settings)
	if errors.Is(err, optim.ErrNoSolution) {
		return FrackResult{X: append([]float64(nil), x...), Fun: math.Inf(1)}, nil
	}
	if err != nil {
		return FrackResult{}, err
	}
	return FrackResult{X: res.X, Fun: res.F}, nil
}
