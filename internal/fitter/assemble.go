package fitter

import (
	"math"
	"time"

	"github.com/san-kum/dynfit/internal/convergence"
	"github.com/san-kum/dynfit/internal/sampler"
)

// State is one reported walker position.
type State struct {
	Temperature   int
	Walker        int
	Iteration     int
	X             []float64
	LogLikelihood float64
	LogPrior      float64
	LogPosterior  float64
}

// Result is the outcome of a run. A discarded run carries only its status.
type Result struct {
	Status     Status
	Iterations int
	BurnIn     int
	Ensemble   *sampler.Ensemble
	Chain      *sampler.Chain
	Autocorr   convergence.Autocorr
	PSRF       *float64
	States     []State
	Acceptance []float64
	Frack      FrackStats
	Elapsed    time.Duration
}

// Assemble lists the final ensemble and, when the autocorrelation estimate
// is high-confidence, one historical state per walker every ceil(tau)
// iterations back from the end of the chain, stopping at burn-in.
func Assemble(ens *sampler.Ensemble, chain *sampler.Chain, burnIn int, ac convergence.Autocorr) []State {
	if ens == nil {
		return nil
	}
	last := -1
	if chain != nil {
		last = chain.Len() - 1
	}

	var states []State
	for t := range ens.Walkers {
		for w, wk := range ens.Walkers[t] {
			states = append(states, State{
				Temperature:   t,
				Walker:        w,
				Iteration:     last,
				X:             append([]float64(nil), wk.X...),
				LogLikelihood: wk.LogLikelihood,
				LogPrior:      wk.LogPrior,
				LogPosterior:  wk.LogPosterior,
			})
		}
	}

	if chain == nil || !ac.Defined() || !ac.HighConfidence {
		return states
	}
	step := max(int(math.Ceil(*ac.Tau)), 1)
	for i := last - step; i >= burnIn && i >= 0; i -= step {
		snap := chain.At(i)
		for t := range snap.X {
			for w := range snap.X[t] {
				wk := snap.Walker(t, w)
				states = append(states, State{
					Temperature:   t,
					Walker:        w,
					Iteration:     i,
					X:             wk.X,
					LogLikelihood: wk.LogLikelihood,
					LogPrior:      wk.LogPrior,
					LogPosterior:  wk.LogPosterior,
				})
			}
		}
	}
	return states
}
