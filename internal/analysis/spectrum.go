package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the magnitude of the one-sided spectrum of data with
// its mean removed. Bin k corresponds to k/(len(data)*dt).
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, x := range data {
		centered[i] = x - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the frequency of the largest non-DC spectral
// peak of v sampled every dt, in cycles per unit of dt. The peak bin is
// refined by parabolic interpolation.
func DominantFrequency(v []float64, dt float64) (float64, error) {
	if len(v) < 4 || dt <= 0 {
		return 0, ErrTooFewSamples
	}
	ps := PowerSpectrum(v)
	peak := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[peak] {
			peak = k
		}
	}

	bin := float64(peak)
	if peak > 1 && peak < len(ps)-1 {
		a, b, c := ps[peak-1], ps[peak], ps[peak+1]
		if d := a - 2*b + c; d != 0 {
			bin += 0.5 * (a - c) / d
		}
	}
	return bin / (float64(len(v)) * dt), nil
}

// Resample linearly interpolates v(t) onto a uniform grid with spacing dt,
// for spectra of captures that dropped frames.
func Resample(t, v []float64, dt float64) []float64 {
	if len(t) == 0 || dt <= 0 {
		return nil
	}
	n := int((t[len(t)-1]-t[0])/dt) + 1
	out := make([]float64, n)
	j := 0
	for i := range out {
		ti := t[0] + float64(i)*dt
		for j < len(t)-2 && t[j+1] < ti {
			j++
		}
		if j == len(t)-1 || t[j+1] == t[j] {
			out[i] = v[j]
			continue
		}
		frac := (ti - t[j]) / (t[j+1] - t[j])
		out[i] = v[j] + frac*(v[j+1]-v[j])
	}
	return out
}
