package models

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynfit/internal/model"
)

func TestModelsImplementContract(t *testing.T) {
	for _, m := range []model.Model{NewGaussian(), NewBimodal(), NewLine(), NewPendulumFit()} {
		t.Run(m.Name(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			d, err := m.DrawWalker(rng, true)
			require.NoError(t, err)
			assert.Len(t, d.X, m.NumDims())
			assert.True(t, model.InBounds(d.X))
			assert.Equal(t, 0.0, d.LogPrior)

			assert.True(t, math.IsInf(m.Prior([]float64{-0.1, 0.5, 0.5}[:m.NumDims()]), -1))
		})
	}
}

func TestGaussian(t *testing.T) {
	g := NewGaussian()
	assert.Equal(t, 0.0, g.Likelihood([]float64{0.5, 0.5}))
	assert.InDelta(t, -0.5, g.Likelihood([]float64{0.55, 0.5}), 1e-9)
}

func TestBimodal(t *testing.T) {
	b := NewBimodal()
	at1 := b.Likelihood([]float64{0.25, 0.25})
	at2 := b.Likelihood([]float64{0.75, 0.75})
	mid := b.Likelihood([]float64{0.5, 0.5})
	assert.InDelta(t, at1, at2, 1e-12)
	assert.InDelta(t, math.Log(0.5), at1, 1e-6)
	assert.Less(t, mid, at1-10)
}

func TestLine_PeaksNearTruth(t *testing.T) {
	l := NewLine()
	truth := []float64{
		(LineSlope + 5) / 10,
		(LineIntercept + 10) / 20,
		(math.Log(LineScatter) + 5) / 6,
	}
	slope, intercept, scatter := l.Params(truth)
	assert.InDelta(t, LineSlope, slope, 1e-12)
	assert.InDelta(t, LineIntercept, intercept, 1e-12)
	assert.InDelta(t, LineScatter, scatter, 1e-12)

	off := []float64{truth[0] + 0.05, truth[1], truth[2]}
	assert.Greater(t, l.Likelihood(truth), l.Likelihood(off))
}

func TestLine_FrackImproves(t *testing.T) {
	l := NewLine()
	start := []float64{0.6, 0.55, 0.8}
	res, err := l.Frack(start, 3)
	require.NoError(t, err)
	assert.True(t, model.InBounds(res.X))
	assert.Less(t, res.Fun, -l.Likelihood(start))
}

func TestPendulum_Derive(t *testing.T) {
	p := Pendulum{Length: 1, Damping: 0, Gravity: 9.81}
	dx := p.Derive([]float64{0, 0}, 0)
	assert.Equal(t, []float64{0, 0}, dx)

	dx = p.Derive([]float64{math.Pi / 2, 0}, 0)
	assert.InDelta(t, -9.81, dx[1], 1e-9)
}

func TestPendulumFit_PeaksNearTruth(t *testing.T) {
	p := NewPendulumFit()
	require.Len(t, p.Angles, 40)

	truth := []float64{
		(PendulumLength - 0.5) / 1.5,
		PendulumDamping,
	}
	sys := p.Params(truth)
	assert.InDelta(t, PendulumLength, sys.Length, 1e-12)

	best := p.Likelihood(truth)
	for _, x := range [][]float64{{truth[0] + 0.1, truth[1]}, {truth[0], truth[1] + 0.2}, {0.1, 0.9}} {
		assert.Greater(t, best, p.Likelihood(x), "at %v", x)
	}
}
