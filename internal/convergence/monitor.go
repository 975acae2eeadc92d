package convergence

import (
	"errors"
	"math"

	"github.com/san-kum/dynfit/internal/sampler"
)

// Autocorr is the autocorrelation estimate of a run. A nil Tau means the
// estimate is not available yet.
type Autocorr struct {
	Tau    *float64
	PerDim []float64
	Window int
	// HighConfidence is set when the estimate came from the largest window.
	HighConfidence bool
}

// Defined reports whether a time estimate exists.
func (a Autocorr) Defined() bool { return a.Tau != nil }

// Monitor applies the diagnostics to a live chain.
//
// The autocorrelation time is estimated once half the production samples
// span Low lags (0.5·n/Low ≥ 1), then refreshed every Interval production
// iterations and once more at the end of the run. The PSRF is computed
// every iteration once two chunks have completed and the iteration is past
// burnIn+2.
type Monitor struct {
	MaxWindow       int
	MinWindow       int
	AutocorrWalkers int
	Low             int
	Threshold       float64
	// Interval is the number of production iterations between
	// autocorrelation estimates during a run.
	Interval int
}

func DefaultMonitor() Monitor {
	return Monitor{
		MaxWindow:       10,
		MinWindow:       2,
		AutocorrWalkers: 5,
		Low:             10,
		Threshold:       DefaultThreshold,
		Interval:        10,
	}
}

func (m Monitor) withDefaults() Monitor {
	d := DefaultMonitor()
	if m.MaxWindow <= 0 {
		m.MaxWindow = d.MaxWindow
	}
	if m.MinWindow <= 0 {
		m.MinWindow = d.MinWindow
	}
	if m.AutocorrWalkers <= 0 {
		m.AutocorrWalkers = d.AutocorrWalkers
	}
	if m.Low <= 0 {
		m.Low = d.Low
	}
	if m.Threshold <= 0 {
		m.Threshold = d.Threshold
	}
	if m.Interval <= 0 {
		m.Interval = d.Interval
	}
	return m
}

// Due reports whether the autocorrelation estimate should be refreshed at
// iteration.
func (m Monitor) Due(iteration, burnIn int) bool {
	m = m.withDefaults()
	n := iteration - burnIn + 1
	return n > 0 && n%m.Interval == 0
}

// Ready reports whether enough production samples exist for an
// autocorrelation estimate.
func (m Monitor) Ready(chain *sampler.Chain, burnIn int) bool {
	m = m.withDefaults()
	n := chain.Len() - burnIn
	return n > 0 && 0.5*float64(n)/float64(m.Low) >= 1
}

// Autocorr estimates the integrated autocorrelation time of the cold rung
// after burn-in, shrinking the window constant until one succeeds. Failure
// yields an undefined estimate.
func (m Monitor) Autocorr(chain *sampler.Chain, burnIn int) (Autocorr, error) {
	m = m.withDefaults()
	if !m.Ready(chain, burnIn) {
		return Autocorr{}, nil
	}
	last := chain.Last()
	positions := chain.Positions([]int{0}, walkerSubset(len(last.X[0]), m.AutocorrWalkers), burnIn)

	var lastErr error
	for window := m.MaxWindow; window >= m.MinWindow; window-- {
		taus, err := IntegratedTime(positions, 0, m.Low, window)
		if err != nil {
			lastErr = err
			continue
		}
		tau := 0.0
		for _, t := range taus {
			tau = math.Max(tau, t)
		}
		return Autocorr{
			Tau:            &tau,
			PerDim:         taus,
			Window:         window,
			HighConfidence: window == m.MaxWindow,
		}, nil
	}
	if errors.Is(lastErr, ErrChainTooShort) {
		return Autocorr{}, nil
	}
	return Autocorr{}, lastErr
}

// PSRF returns the worst Gelman-Rubin statistic of the production chain,
// or nil until at least two chunks have completed and the iteration is past
// burnIn+2.
func (m Monitor) PSRF(chain *sampler.Chain, burnIn, iteration, chunks int) *float64 {
	if !m.PSRFDue(iteration, burnIn, chunks) {
		return nil
	}
	return m.FinalPSRF(chain, burnIn)
}

// PSRFDue reports whether PSRF computes a value at iteration.
func (m Monitor) PSRFDue(iteration, burnIn, chunks int) bool {
	return chunks >= 2 && iteration > burnIn+2
}

// FinalPSRF computes the statistic without chunk gating, or nil when the
// production chain is too short to split.
func (m Monitor) FinalPSRF(chain *sampler.Chain, burnIn int) *float64 {
	if chain.Len()-burnIn < 4 {
		return nil
	}
	r := MaxPSRF(chain, burnIn)
	return &r
}

// Converged reports whether psrf is defined and below the threshold.
func (m Monitor) Converged(psrf *float64) bool {
	m = m.withDefaults()
	return psrf != nil && *psrf < m.Threshold
}

// walkerSubset picks at most limit walker indices spread evenly over n.
func walkerSubset(n, limit int) []int {
	if limit >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, limit)
	for i := range idx {
		idx[i] = i * n / limit
	}
	return idx
}
