package sampler

import (
	"context"
	"fmt"
	"iter"
	"math"
	"math/rand"

	"github.com/san-kum/dynfit/internal/model"
	"github.com/san-kum/dynfit/internal/pool"
)

// DefaultStretchScale is the stretch-move scale parameter a.
const DefaultStretchScale = 2.0

type KernelOptions struct {
	// Scale is the stretch-move parameter a; values <= 1 select the default.
	Scale float64
	// NoSwaps disables temperature exchange between adjacent rungs.
	NoSwaps bool
}

// Kernel advances an ensemble with tempered stretch moves. Likelihoods are
// evaluated through the pool, one Map per half-ensemble across all rungs.
type Kernel struct {
	pool       pool.Pool
	rng        *rand.Rand
	scale      float64
	swaps      bool
	Acceptance Acceptance
}

func NewKernel(p pool.Pool, rng *rand.Rand, opts KernelOptions) *Kernel {
	if opts.Scale <= 1 {
		opts.Scale = DefaultStretchScale
	}
	return &Kernel{pool: p, rng: rng, scale: opts.Scale, swaps: !opts.NoSwaps}
}

// Step is yielded once per completed iteration. Ensemble is the live,
// in-place mutated ensemble.
type Step struct {
	Iteration  int
	Ensemble   *Ensemble
	Acceptance *Acceptance
}

// Sample runs iterations moves on ens. With gibbs set each proposal moves a
// single randomly chosen dimension; otherwise all dimensions move jointly.
// Iteration stops at the first error, which is yielded with the index of
// the failed iteration.
func (k *Kernel) Sample(ctx context.Context, ens *Ensemble, iterations int, gibbs bool) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		if err := ens.Validate(); err != nil {
			yield(Step{Ensemble: ens}, err)
			return
		}
		for i := 0; i < iterations; i++ {
			if err := k.Advance(ctx, ens, gibbs); err != nil {
				yield(Step{Iteration: i, Ensemble: ens}, err)
				return
			}
			if !yield(Step{Iteration: i, Ensemble: ens, Acceptance: &k.Acceptance}, nil) {
				return
			}
		}
	}
}

type proposal struct {
	t, w   int
	y      []float64
	lnZ    float64
	inside bool
}

// Advance performs one full iteration: a stretch move for each half of
// every rung followed by temperature swaps. On error the ensemble keeps
// whatever moves were already accepted in the iteration.
func (k *Kernel) Advance(ctx context.Context, ens *Ensemble, gibbs bool) error {
	nt, nw, nd := ens.NumTemps(), ens.NumWalkers(), ens.NumDims()
	k.Acceptance.Reset(nt, nw)

	half := nw / 2
	for _, set := range [2][2]int{{0, half}, {half, nw}} {
		lo, hi := set[0], set[1]
		plo, phi := half, nw
		if lo != 0 {
			plo, phi = 0, half
		}

		props := make([]proposal, 0, nt*(hi-lo))
		for t := 0; t < nt; t++ {
			for w := lo; w < hi; w++ {
				props = append(props, k.propose(ens, t, w, plo+k.rng.Intn(phi-plo), nd, gibbs))
			}
		}

		xs := make([][]float64, 0, len(props))
		for _, p := range props {
			if p.inside {
				xs = append(xs, p.y)
			}
		}
		outcomes, err := k.pool.Map(ctx, pool.Evaluate(xs))
		if err != nil {
			return err
		}
		if len(outcomes) != len(xs) {
			return fmt.Errorf("%w: %d of %d", ErrShortResult, len(outcomes), len(xs))
		}

		j := 0
		for _, p := range props {
			k.Acceptance.Proposed[p.t][p.w]++
			if !p.inside {
				continue
			}
			o := outcomes[j]
			j++
			cur := ens.Walkers[p.t][p.w]
			post := Tempered(ens.Betas[p.t], o.LogLikelihood, o.LogPrior)
			if !model.IsFinite(post) {
				continue
			}
			lnq := p.lnZ + post - cur.LogPosterior
			if !cur.Valid() || lnq > math.Log(k.rng.Float64()) {
				ens.Set(p.t, p.w, p.y, o.LogLikelihood, o.LogPrior)
				k.Acceptance.Accepted[p.t][p.w]++
			}
		}
	}

	if k.swaps {
		k.swap(ens)
	}
	return nil
}

func (k *Kernel) propose(ens *Ensemble, t, w, partner, nd int, gibbs bool) proposal {
	a := k.scale
	u := k.rng.Float64()
	z := ((a-1)*u + 1) * ((a-1)*u + 1) / a

	x := ens.Walkers[t][w].X
	xj := ens.Walkers[t][partner].X
	y := append([]float64(nil), x...)

	p := proposal{t: t, w: w, y: y}
	if gibbs {
		d := k.rng.Intn(nd)
		y[d] = xj[d] + z*(x[d]-xj[d])
	} else {
		for d := range y {
			y[d] = xj[d] + z*(x[d]-xj[d])
		}
		p.lnZ = float64(nd-1) * math.Log(z)
	}
	p.inside = model.InBounds(y)
	return p
}

// swap exchanges walkers between adjacent rungs, hottest pair first.
func (k *Kernel) swap(ens *Ensemble) {
	nt, nw := ens.NumTemps(), ens.NumWalkers()
	for t := nt - 1; t > 0; t-- {
		dbeta := ens.Betas[t-1] - ens.Betas[t]
		hot := k.rng.Perm(nw)
		cold := k.rng.Perm(nw)
		for i := 0; i < nw; i++ {
			h, c := hot[i], cold[i]
			wh, wc := ens.Walkers[t][h], ens.Walkers[t-1][c]
			k.Acceptance.SwapProposed[t]++
			if dbeta*(wh.LogLikelihood-wc.LogLikelihood) > math.Log(k.rng.Float64()) {
				ens.Set(t, h, wc.X, wc.LogLikelihood, wc.LogPrior)
				ens.Set(t-1, c, wh.X, wh.LogLikelihood, wh.LogPrior)
				k.Acceptance.SwapAccepted[t]++
			}
		}
	}
}
