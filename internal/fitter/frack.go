package fitter

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/pool"
	"github.com/san-kum/dynfit/internal/sampler"
)

// SeedPolicy returns the optimizer seed for the i-th frack task of a round.
type SeedPolicy func(i int) int64

// TimeSeeds derives seeds from the clock and the process id.
func TimeSeeds() SeedPolicy {
	pid := int64(os.Getpid())
	return func(i int) int64 {
		return time.Now().UnixNano() ^ pid ^ int64(i)
	}
}

// FixedSeeds derives seeds from base, for reproducible runs.
func FixedSeeds(base int64) SeedPolicy {
	return func(i int) int64 { return base + int64(i) }
}

// FrackStats summarizes fracking over a run or a single round.
type FrackStats struct {
	Rounds   int
	Attempts int
	Improved int
	Elapsed  time.Duration
}

func (s *FrackStats) add(o FrackStats) {
	s.Rounds += o.Rounds
	s.Attempts += o.Attempts
	s.Improved += o.Improved
	s.Elapsed += o.Elapsed
}

// Fracker locally optimizes a few walkers, chosen with probability
// increasing in their score, and keeps results that strictly improve.
type Fracker struct {
	pool  pool.Pool
	rng   *rand.Rand
	seeds SeedPolicy
	now   func() time.Time

	// Step is the iteration interval between rounds.
	Step int
	// Softening scales score differences in the selection weights.
	Softening float64
}

func NewFracker(p pool.Pool, rng *rand.Rand, seeds SeedPolicy, now func() time.Time) *Fracker {
	if seeds == nil {
		seeds = TimeSeeds()
	}
	if now == nil {
		now = time.Now
	}
	cfg := DefaultConfig()
	return &Fracker{pool: p, rng: rng, seeds: seeds, now: now, Step: cfg.FrackStep, Softening: cfg.Softening}
}

// Due reports whether a round runs at iteration.
func (f *Fracker) Due(iteration, burnIn int) bool {
	return f.Step > 0 && iteration < burnIn && iteration%f.Step == 0
}

// Weights returns the selection weight of every slot, flattened rung by
// rung. Slots without a finite score get zero weight.
func (f *Fracker) Weights(ens *sampler.Ensemble) []float64 {
	nw := ens.NumWalkers()
	scores := make([]float64, 0, ens.NumTemps()*nw)
	for t := range ens.Walkers {
		scores = append(scores, ens.Scores(t)...)
	}
	best := math.Inf(-1)
	for _, s := range scores {
		if model.IsFinite(s) {
			best = math.Max(best, s)
		}
	}
	weights := make([]float64, len(scores))
	if math.IsInf(best, -1) {
		return weights
	}
	for i, s := range scores {
		if model.IsFinite(s) {
			weights[i] = math.Exp(f.Softening * (s - best))
		}
	}
	return weights
}

// Frack runs one round: Pool.Workers() slots are drawn with replacement and
// optimized in a single Map.
func (f *Fracker) Frack(ctx context.Context, ens *sampler.Ensemble) (stats FrackStats, err error) {
	start := f.now()
	stats.Rounds = 1
	defer func() { stats.Elapsed = f.now().Sub(start) }()

	weights := f.Weights(ens)
	cdf := make([]float64, len(weights))
	floats.CumSum(cdf, weights)
	total := cdf[len(cdf)-1]
	if total <= 0 {
		return stats, nil
	}

	nw := ens.NumWalkers()
	n := f.pool.Workers()
	slots := make([]int, n)
	tasks := make([]pool.Task, n)
	for i := range tasks {
		u := f.rng.Float64() * total
		k := sort.SearchFloat64s(cdf, u)
		if k >= len(cdf) {
			k = len(cdf) - 1
		}
		for weights[k] == 0 && k < len(weights)-1 {
			k++
		}
		slots[i] = k
		wk := ens.Walkers[k/nw][k%nw]
		tasks[i] = pool.Task{Kind: pool.TaskFrack, X: append([]float64(nil), wk.X...), Seed: f.seeds(i)}
	}
	stats.Attempts = n

	outcomes, err := f.pool.Map(ctx, tasks)
	if err != nil {
		return stats, fmt.Errorf("fitter: frack: %w", err)
	}
	if len(outcomes) != n {
		return stats, fmt.Errorf("fitter: frack: %w", sampler.ErrShortResult)
	}

	for i, o := range outcomes {
		t, w := slots[i]/nw, slots[i]%nw
		next := sampler.Tempered(ens.Betas[t], o.LogLikelihood, o.LogPrior)
		if !model.IsFinite(o.LogLikelihood) || !model.IsFinite(next) || !model.InBounds(o.X) {
			continue
		}
		if next > ens.Walkers[t][w].LogPosterior {
			ens.Set(t, w, o.X, o.LogLikelihood, o.LogPrior)
			stats.Improved++
		}
	}
	return stats, nil
}
