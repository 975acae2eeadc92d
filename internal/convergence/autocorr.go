package convergence

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AutocorrFunction returns the normalized autocorrelation of x for lags
// 0..len(x)-1, or nil when x has zero variance.
func AutocorrFunction(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(x, nil)

	m := nextPow2(2 * n)
	padded := make([]complex128, m)
	for i, v := range x {
		padded[i] = complex(v-mean, 0)
	}
	f := fft(padded, false)
	for i, c := range f {
		f[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	inv := fft(f, true)

	acf := make([]float64, n)
	norm := real(inv[0])
	if norm <= 0 || math.IsNaN(norm) {
		return nil
	}
	for i := range acf {
		acf[i] = real(inv[i]) / norm
	}
	return acf
}

// IntegratedTime estimates the integrated autocorrelation time of every
// dimension of chain, shaped (temperature, walker, iteration, dim). The
// autocorrelation function is averaged over temperatures and walkers using
// iterations from min onward. The window is the smallest lag M >= low for
// which M >= window*tau(M); lags are searched up to half the series.
func IntegratedTime(chain [][][][]float64, min, low, window int) ([]float64, error) {
	if len(chain) == 0 || len(chain[0]) == 0 || len(chain[0][0]) <= min {
		return nil, ErrChainTooShort
	}
	n := len(chain[0][0]) - min
	ndim := len(chain[0][0][0])
	high := n / 2
	if low < 1 {
		low = 1
	}

	taus := make([]float64, ndim)
	for d := 0; d < ndim; d++ {
		f := make([]float64, n)
		count := 0
		for _, temp := range chain {
			for _, walker := range temp {
				trace := make([]float64, n)
				for i := range trace {
					trace[i] = walker[min+i][d]
				}
				acf := AutocorrFunction(trace)
				if acf == nil {
					continue
				}
				for i, v := range acf {
					f[i] += v
				}
				count++
			}
		}
		if count == 0 {
			return nil, ErrZeroVariance
		}

		found := false
		sum := 0.0
		for k := 1; k < low && k < n; k++ {
			sum += f[k] / float64(count)
		}
		for M := low; M < high; M++ {
			sum += f[M] / float64(count)
			tau := 1 + 2*sum
			if float64(M) >= float64(window)*tau {
				taus[d] = tau
				found = true
				break
			}
		}
		if !found {
			return nil, ErrChainTooShort
		}
	}
	return taus, nil
}
