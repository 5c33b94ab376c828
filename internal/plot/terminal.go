package plot

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

// Terminal renders one or more series as an ASCII chart. Series longer than
// width are downsampled by averaging.
func Terminal(caption string, height, width int, series ...[]float64) string {
	data := make([][]float64, 0, len(series))
	for _, s := range series {
		s = finite(s)
		if len(s) == 0 {
			continue
		}
		data = append(data, Downsample(s, width))
	}
	if len(data) == 0 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	}
	if len(data) > 1 {
		opts = append(opts, asciigraph.SeriesColors(
			asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow,
		))
	}
	return asciigraph.PlotMany(data, opts...)
}

// Downsample averages v into at most n buckets.
func Downsample(v []float64, n int) []float64 {
	if n <= 0 || len(v) <= n {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		lo := i * len(v) / n
		hi := (i + 1) * len(v) / n
		var sum float64
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

func finite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
