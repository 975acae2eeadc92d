package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

// Trace plots a score history. Non-finite leading values are dropped and
// later ones carry the previous finite value, since the chart cannot place
// them. It returns an empty string when nothing finite remains.
func Trace(values []float64, caption string, width, height int) string {
	clean := finiteSeries(values)
	if len(clean) == 0 {
		return ""
	}
	opts := []asciigraph.Option{asciigraph.Height(height), asciigraph.Caption(caption)}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	return asciigraph.Plot(clean, opts...)
}

func finiteSeries(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(out) > 0 {
				out = append(out, out[len(out)-1])
			}
			continue
		}
		out = append(out, v)
	}
	return out
}
