package analysis

import "math"

// FrequencyPoint is one point of a measured frequency response.
type FrequencyPoint struct {
	// Frequency in cycles/ms.
	Frequency float64 `json:"frequency" yaml:"frequency"`
	// Magnitude is velocity amplitude per unit of power amplitude.
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	// Phase of the velocity relative to the drive, radians.
	Phase float64 `json:"phase" yaml:"phase"`
}

// Omega returns the angular frequency in rad/ms.
func (p FrequencyPoint) Omega() float64 {
	return 2 * math.Pi * p.Frequency
}

// MagnitudeDB returns the magnitude in decibels.
func (p FrequencyPoint) MagnitudeDB() float64 {
	return 20 * math.Log10(p.Magnitude)
}

// BodePoint compares a sine fit of the velocity with a drive of the given
// amplitude that starts at phase zero.
func BodePoint(fit SineParams, driveAmplitude float64) FrequencyPoint {
	p := FrequencyPoint{Frequency: fit.Frequency, Phase: wrapPhase(fit.Phase)}
	if driveAmplitude != 0 {
		p.Magnitude = math.Abs(fit.Amplitude / driveAmplitude)
	}
	if fit.Amplitude < 0 {
		p.Phase = wrapPhase(p.Phase + math.Pi)
	}
	return p
}
