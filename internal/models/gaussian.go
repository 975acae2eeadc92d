package models

import (
	"github.com/san-kum/dynfit/internal/optim"
)

// Gaussian is an isotropic normal likelihood centred in the box.
type Gaussian struct {
	box
	Mean  []float64
	Sigma float64
}

func NewGaussian() *Gaussian {
	return NewGaussianAt([]float64{0.5, 0.5}, 0.05)
}

func NewGaussianAt(mean []float64, sigma float64) *Gaussian {
	g := &Gaussian{Mean: append([]float64(nil), mean...), Sigma: sigma}
	g.box = box{self: g, settings: optim.DefaultSettings()}
	return g
}

func (g *Gaussian) Name() string { return "gaussian" }
func (g *Gaussian) NumDims() int { return len(g.Mean) }

func (g *Gaussian) Likelihood(x []float64) float64 {
	s := 0.0
	for i, m := range g.Mean {
		d := (x[i] - m) / g.Sigma
		s += d * d
	}
	return -0.5 * s
}
