package models

import (
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/optim"
)

// Line fits slope, intercept and log-scatter of a straight line to a
// seeded synthetic data set.
type Line struct {
	box
	X, Y []float64

	SlopeRange     [2]float64
	InterceptRange [2]float64
	LogScatter     [2]float64
}

// Truth of the synthetic data set.
const (
	LineSlope     = 1.5
	LineIntercept = 2.0
	LineScatter   = 0.5
)

func NewLine() *Line {
	return NewLineWithData(30, 42)
}

// NewLineWithData generates n noisy points from the true line with seed.
func NewLineWithData(n int, seed int64) *Line {
	rng := rand.New(rand.NewSource(seed))
	l := &Line{
		X:              make([]float64, n),
		Y:              make([]float64, n),
		SlopeRange:     [2]float64{-5, 5},
		InterceptRange: [2]float64{-10, 10},
		LogScatter:     [2]float64{-5, 1},
	}
	for i := range l.X {
		l.X[i] = 10 * float64(i) / float64(max(n-1, 1))
		l.Y[i] = LineSlope*l.X[i] + LineIntercept + LineScatter*rng.NormFloat64()
	}
	l.box = box{self: l, settings: optim.DefaultSettings()}
	return l
}

func (l *Line) Name() string { return "line" }
func (l *Line) NumDims() int { return 3 }

// Params maps x onto slope, intercept and scatter.
func (l *Line) Params(x []float64) (slope, intercept, scatter float64) {
	slope = lerp(x[0], l.SlopeRange[0], l.SlopeRange[1])
	intercept = lerp(x[1], l.InterceptRange[0], l.InterceptRange[1])
	scatter = math.Exp(lerp(x[2], l.LogScatter[0], l.LogScatter[1]))
	return
}

func (l *Line) Likelihood(x []float64) float64 {
	slope, intercept, scatter := l.Params(x)
	ll := 0.0
	for i, xi := range l.X {
		ll += logNormal(l.Y[i]-(slope*xi+intercept), scatter)
	}
	return ll
}
