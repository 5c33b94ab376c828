package analysis

import (
	"errors"

	"github.com/san-kum/motorlab/internal/telemetry"
)

var (
	ErrTooFewSamples = errors.New("analysis: too few samples")
	ErrNoStep        = errors.New("analysis: capture has no step phase")
	ErrNoRise        = errors.New("analysis: response never reaches 63.2% of final velocity")
	ErrSingular      = errors.New("analysis: singular normal matrix")
)

// Velocities differentiates positions in ticks/ms. Each value is the
// forward difference from its sample to the next; the last value repeats
// the one before it so the result matches the input length. Samples with
// the same timestamp reuse the previous velocity.
func Velocities(samples []telemetry.Sample) []float64 {
	v := make([]float64, len(samples))
	if len(samples) < 2 {
		return v
	}
	for i := 0; i < len(samples)-1; i++ {
		dt := samples[i+1].Time - samples[i].Time
		if dt == 0 {
			if i > 0 {
				v[i] = v[i-1]
			}
			continue
		}
		v[i] = (samples[i+1].Position - samples[i].Position) / dt
	}
	v[len(v)-1] = v[len(v)-2]
	return v
}

// Smooth returns the centered moving average of v over width points. The
// window shrinks at the edges.
func Smooth(v []float64, width int) []float64 {
	if width <= 1 {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	half := width / 2
	out := make([]float64, len(v))
	for i := range v {
		lo, hi := max(0, i-half), min(len(v), i+half+1)
		var sum float64
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// SmoothPhases smooths v like Smooth within each run of samples sharing a
// phase, so the step edge does not leak into the idle phase before it.
// Step statistics are computed from this.
func SmoothPhases(samples []telemetry.Sample, v []float64, width int) []float64 {
	out := make([]float64, 0, len(v))
	for lo := 0; lo < len(v); {
		hi := lo + 1
		for hi < len(v) && samples[hi].Step == samples[lo].Step {
			hi++
		}
		out = append(out, Smooth(v[lo:hi], width)...)
		lo = hi
	}
	return out
}

// Window keeps samples with from <= t < to. A non-positive to leaves the
// window open ended.
func Window(samples []telemetry.Sample, from, to float64) []telemetry.Sample {
	var out []telemetry.Sample
	for _, s := range samples {
		if s.Time < from {
			continue
		}
		if to > 0 && s.Time >= to {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Phase returns the indices of samples captured during phase.
func Phase(samples []telemetry.Sample, phase int) []int {
	var idx []int
	for i, s := range samples {
		if s.Step == phase {
			idx = append(idx, i)
		}
	}
	return idx
}
