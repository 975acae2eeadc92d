package fitter_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/models"
	"github.com/san-kum/dynfit/internal/optim"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/sampler"
)

func gaussianFactory() (model.Model, error) { return models.NewGaussian(), nil }

// noopFrack leaves every walker where it is.
type noopFrack struct{ *models.Gaussian }

func (n noopFrack) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.FrackResult{X: append([]float64(nil), x...), Fun: -n.Likelihood(x)}, nil
}

// worseFrack always returns a point that scores lower than its start.
type worseFrack struct{ *models.Gaussian }

func (w worseFrack) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.FrackResult{X: append([]float64(nil), x...), Fun: -w.Likelihood(x) + 5}, nil
}

// peakFrack jumps straight to the mode.
type peakFrack struct{ *models.Gaussian }

func (p peakFrack) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.FrackResult{X: []float64{0.5, 0.5}, Fun: 0}, nil
}

// hopeless never produces a finite likelihood.
type hopeless struct{ *models.Gaussian }

func (hopeless) Likelihood([]float64) float64 { return math.Inf(-1) }

func (h hopeless) DrawWalker(rng *rand.Rand, test bool) (model.Draw, error) {
	return model.UniformDraw(h, rng, test), nil
}

// ridge is finite only on a thin band around x0 = 0.3, so local
// optimization from a jittered start never sees a finite value.
type ridge struct{ *models.Gaussian }

func (r ridge) Likelihood(x []float64) float64 {
	if math.Abs(x[0]-0.3) > 1e-4 {
		return math.Inf(-1)
	}
	d := (x[1] - 0.5) / 0.1
	return -0.5 * d * d
}

func (r ridge) Frack(x []float64, seed int64) (model.FrackResult, error) {
	return model.MinimizeFrack(r, x, seed, optim.DefaultSettings())
}

func ridgeEnsemble(nwalkers int) *sampler.Ensemble {
	r := ridge{models.NewGaussian()}
	ens := sampler.NewEnsemble([]float64{1}, nwalkers)
	for w := 0; w < nwalkers; w++ {
		x := []float64{0.3, 0.2 + 0.6*float64(w)/float64(nwalkers)}
		ens.Set(0, w, x, r.Likelihood(x), r.Prior(x))
	}
	return ens
}

// flakyPool fails the failAt-th Map call.
type flakyPool struct {
	pool.Pool
	calls  atomic.Int32
	failAt int32
}

var errWorkerLost = errors.New("worker lost")

func (p *flakyPool) Map(ctx context.Context, tasks []pool.Task) ([]pool.Outcome, error) {
	if p.calls.Add(1) == p.failAt {
		return nil, errWorkerLost
	}
	return p.Pool.Map(ctx, tasks)
}

// stepClock advances by step on every reading.
func stepClock(step time.Duration) func() time.Time {
	var ticks atomic.Int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * step)
	}
}

func mean(xs [][]float64, d int) float64 {
	s := 0.0
	for _, x := range xs {
		s += x[d]
	}
	return s / float64(len(xs))
}
