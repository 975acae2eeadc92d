package convergence

import (
	"math"
	"math/cmplx"
)

// fft is a radix-2 transform; len(data) must be a power of two.
func fft(data []complex128, inverse bool) []complex128 {
	n := len(data)
	if n <= 1 {
		return append([]complex128(nil), data...)
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := fft(even, inverse)
	fodd := fft(odd, inverse)

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, sign*2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
