package sampler

import "math"

// BurnIn derives the burn-in length for a run of iterations. Without an
// explicit split it is half the budget; an explicit burn or postBurn
// determines the other as its complement, floored at zero.
func BurnIn(iterations int, burn, postBurn *int) (burnIn, post int) {
	switch {
	case burn != nil:
		burnIn = *burn
	case postBurn != nil:
		burnIn = iterations - *postBurn
	default:
		burnIn = int(math.RoundToEven(float64(iterations) / 2))
	}
	burnIn = max(0, min(burnIn, iterations))
	return burnIn, iterations - burnIn
}

// Range is a half-open iteration interval [Start, End).
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start }

// Chunks splits [start, end) into ranges of at most size iterations with a
// forced boundary at burnIn.
func Chunks(start, end, burnIn, size int) []Range {
	if size < 1 {
		size = 1
	}
	var out []Range
	for i := start; i < end; {
		stop := min(i+size, end)
		if i < burnIn && burnIn < stop {
			stop = burnIn
		}
		out = append(out, Range{Start: i, End: stop})
		i = stop
	}
	return out
}
