package models

import (
	"math"

	"github.com/san-kum/dynfit/internal/optim"
)

// Bimodal is an equal-weight mixture of two isotropic normals on the box
// diagonal. Parallel tempering is needed to populate both modes.
type Bimodal struct {
	box
	Modes [2][]float64
	Sigma float64
}

func NewBimodal() *Bimodal {
	b := &Bimodal{
		Modes: [2][]float64{{0.25, 0.25}, {0.75, 0.75}},
		Sigma: 0.04,
	}
	b.box = box{self: b, settings: optim.DefaultSettings()}
	return b
}

func (b *Bimodal) Name() string { return "bimodal" }
func (b *Bimodal) NumDims() int { return len(b.Modes[0]) }

func (b *Bimodal) Likelihood(x []float64) float64 {
	var ll [2]float64
	for k, mode := range b.Modes {
		s := 0.0
		for i, m := range mode {
			d := (x[i] - m) / b.Sigma
			s += d * d
		}
		ll[k] = -0.5 * s
	}
	hi := math.Max(ll[0], ll[1])
	return hi + math.Log(0.5*(math.Exp(ll[0]-hi)+math.Exp(ll[1]-hi)))
}
