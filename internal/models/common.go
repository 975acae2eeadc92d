package models

import (
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/optim"
)

// box supplies the prior, draw and frack behaviour shared by every model.
type box struct {
	self     model.Model
	settings optim.Settings
}

func (b box) Prior(x []float64) float64 {
	if !model.InBounds(x) {
		return math.Inf(-1)
	}
	return 0
}

func (b box) DrawWalker(rng *rand.Rand, test bool) (model.Draw, error) {
	return model.UniformDraw(b.self, rng, test), nil
}

func (b box) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.MinimizeFrack(b.self, x, seed, b.settings)
}

// lerp maps a unit fraction onto [lo, hi].
func lerp(f, lo, hi float64) float64 {
	return lo + f*(hi-lo)
}

func logNormal(resid, sigma float64) float64 {
	return -0.5*(resid*resid)/(sigma*sigma) - math.Log(sigma) - 0.5*math.Log(2*math.Pi)
}
