package convergence

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dynfit/internal/sampler"
)

// DefaultThreshold is the PSRF below which a run counts as converged.
const DefaultThreshold = 1.1

// PSRF computes the Gelman-Rubin statistic for one parameter. Each walker
// trace is split into two halves, giving m = 2*len(traces) chains of length
// n. The result is floored at 1; zero within-chain variance or a non-finite
// estimate yields +Inf.
func PSRF(traces [][]float64) float64 {
	if len(traces) == 0 {
		return math.Inf(1)
	}
	length := len(traces[0])
	for _, tr := range traces {
		length = min(length, len(tr))
	}
	n := length / 2
	if n < 2 {
		return math.Inf(1)
	}

	chains := make([][]float64, 0, 2*len(traces))
	for _, tr := range traces {
		chains = append(chains, tr[:n], tr[length-n:length])
	}
	m := float64(len(chains))
	nf := float64(n)

	means := make([]float64, len(chains))
	w := 0.0
	for j, c := range chains {
		means[j] = stat.Mean(c, nil)
		w += stat.Variance(c, nil)
	}
	w /= m
	if w == 0 || math.IsNaN(w) {
		return math.Inf(1)
	}

	grand := stat.Mean(means, nil)
	b := 0.0
	for _, mu := range means {
		b += (mu - grand) * (mu - grand)
	}
	b *= nf / (m - 1)

	v := (nf-1)/nf*w + (m+1)/(m*nf)*b
	r := math.Sqrt(v / w)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.Inf(1)
	}
	return math.Max(1, r)
}

// MaxPSRF returns the largest PSRF over every temperature and dimension of
// chain, using iterations from onward.
func MaxPSRF(chain *sampler.Chain, from int) float64 {
	last := chain.Last()
	if last == nil {
		return math.Inf(1)
	}
	worst := 0.0
	for t := range last.X {
		nw := len(last.X[t])
		for d := range last.X[t][0] {
			traces := make([][]float64, nw)
			for w := 0; w < nw; w++ {
				traces[w] = chain.Trace(t, w, d, from)
			}
			r := PSRF(traces)
			if math.IsNaN(r) {
				r = math.Inf(1)
			}
			worst = math.Max(worst, r)
		}
	}
	return worst
}
