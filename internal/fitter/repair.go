package fitter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/sampler"
)

// RepairStats summarizes one repair pass.
type RepairStats struct {
	Candidates int
	Replaced   int
}

// Repairer replaces walkers whose scores fall far below the median of
// their rung with jittered copies of healthy walkers.
type Repairer struct {
	pool pool.Pool
	rng  *rand.Rand

	// Jitter is the standard deviation of the Gaussian perturbation.
	Jitter float64
	// Floor is the minimum distance below the median that marks a walker.
	Floor float64
}

func NewRepairer(p pool.Pool, rng *rand.Rand, jitter, floor float64) *Repairer {
	return &Repairer{pool: p, rng: rng, Jitter: jitter, Floor: floor}
}

// RedrawMultiplier is sqrt(2)*erfinv((n-1)/n), the number of standard
// deviations beyond which one of n normal samples is expected to fall.
func RedrawMultiplier(n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Sqrt2 * math.Erfinv(float64(n-1)/float64(n))
}

// Threshold returns the score at or below which a walker of a rung with the
// given scores counts as divergent. Non-finite scores are ignored; ok is
// false when no score is finite.
func (r *Repairer) Threshold(scores []float64) (threshold float64, ok bool) {
	finite := make([]float64, 0, len(scores))
	for _, s := range scores {
		if model.IsFinite(s) {
			finite = append(finite, s)
		}
	}
	if len(finite) == 0 {
		return 0, false
	}
	slices.Sort(finite)
	median := medianSorted(finite)

	dev := make([]float64, len(finite))
	for i, s := range finite {
		dev[i] = math.Abs(s - median)
	}
	mad := stat.Mean(dev, nil)

	return median - math.Max(RedrawMultiplier(len(scores))*mad, r.Floor), true
}

type repairSlot struct {
	t, w int
	x    []float64
}

// Repair replaces divergent walkers in every rung. A replacement is kept
// only when it improves the walker or the walker had no finite score.
func (r *Repairer) Repair(ctx context.Context, ens *sampler.Ensemble) (RepairStats, error) {
	var stats RepairStats

	var templates [][2]int
	for t := range ens.Walkers {
		for w, wk := range ens.Walkers[t] {
			if wk.Valid() {
				templates = append(templates, [2]int{t, w})
			}
		}
	}
	if len(templates) == 0 {
		return stats, nil
	}

	var slots []repairSlot
	for t := range ens.Walkers {
		threshold, ok := r.Threshold(ens.Scores(t))
		for w, wk := range ens.Walkers[t] {
			if ok && wk.Valid() && wk.LogPosterior > threshold {
				continue
			}
			src := templates[r.rng.Intn(len(templates))]
			tmpl := ens.Walkers[src[0]][src[1]].X
			x := make([]float64, len(tmpl))
			for d, v := range tmpl {
				x[d] = v + r.Jitter*r.rng.NormFloat64()
			}
			slots = append(slots, repairSlot{t: t, w: w, x: model.Clip(x)})
		}
	}
	stats.Candidates = len(slots)
	if len(slots) == 0 {
		return stats, nil
	}

	xs := make([][]float64, len(slots))
	for i, s := range slots {
		xs[i] = s.x
	}
	outcomes, err := r.pool.Map(ctx, pool.Evaluate(xs))
	if err != nil {
		return stats, fmt.Errorf("fitter: repair: %w", err)
	}
	if len(outcomes) != len(slots) {
		return stats, fmt.Errorf("fitter: repair: %w", sampler.ErrShortResult)
	}

	for i, s := range slots {
		o := outcomes[i]
		next := sampler.Tempered(ens.Betas[s.t], o.LogLikelihood, o.LogPrior)
		if !model.IsFinite(next) {
			continue
		}
		cur := ens.Walkers[s.t][s.w]
		if !cur.Valid() || next > cur.LogPosterior {
			ens.Set(s.t, s.w, s.x, o.LogLikelihood, o.LogPrior)
			stats.Replaced++
		}
	}
	return stats, nil
}

func medianSorted(s []float64) float64 {
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}
