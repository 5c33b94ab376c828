package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/telemetry"
)

const (
	// DefaultTail is the fraction of the driven phase averaged for the
	// final velocity.
	DefaultTail = 0.5
	// RiseFraction defines the time constant.
	RiseFraction = 1 - 1/math.E
)

// StepResponse holds the first-order statistics of a step capture.
type StepResponse struct {
	// FinalVelocity in ticks/ms.
	FinalVelocity float64 `json:"final_velocity" yaml:"final_velocity"`
	// TimeConstant in ms, measured from StepStart.
	TimeConstant float64 `json:"time_constant" yaml:"time_constant"`
	// Gain is FinalVelocity per unit of power.
	Gain float64 `json:"gain" yaml:"gain"`
	// StepStart is the capture time at which the step power was commanded.
	StepStart float64 `json:"step_start" yaml:"step_start"`
	Power     float64 `json:"power" yaml:"power"`
}

// FinalVelocity averages the last tail fraction of the velocities captured
// during phase.
func FinalVelocity(samples []telemetry.Sample, v []float64, phase int, tail float64) (float64, error) {
	if len(samples) != len(v) {
		return 0, fmt.Errorf("analysis: %d samples but %d velocities", len(samples), len(v))
	}
	if tail <= 0 || tail > 1 {
		tail = DefaultTail
	}
	idx := Phase(samples, phase)
	if len(idx) == 0 {
		return 0, fmt.Errorf("%w: phase %d", ErrNoStep, phase)
	}
	n := int(math.Ceil(float64(len(idx)) * tail))
	tailIdx := idx[len(idx)-n:]

	vals := make([]float64, len(tailIdx))
	for i, j := range tailIdx {
		vals[i] = v[j]
	}
	return stat.Mean(vals, nil), nil
}

// StepStart returns the time of the frame that triggered the step command:
// the last sample before the driven phase, or the first driven sample when
// the capture has no idle lead-in.
func StepStart(samples []telemetry.Sample) (float64, error) {
	for i, s := range samples {
		if s.Step != capture.PhaseStep {
			continue
		}
		if i > 0 {
			return samples[i-1].Time, nil
		}
		return s.Time, nil
	}
	return 0, ErrNoStep
}

// TimeConstant returns the time after start at which v first reaches
// RiseFraction of final, interpolated linearly between samples.
func TimeConstant(samples []telemetry.Sample, v []float64, start, final float64) (float64, error) {
	if final == 0 {
		return 0, fmt.Errorf("%w: final velocity is zero", ErrNoRise)
	}
	target := RiseFraction * final
	// compare on the positive side so reverse steps work too
	sign := math.Copysign(1, final)

	prevT, prevV := start, 0.0
	for i, s := range samples {
		if s.Time < start {
			continue
		}
		if s.Step != capture.PhaseStep && s.Time > start {
			break
		}
		if sign*v[i] >= sign*target {
			if v[i] == prevV || s.Time == prevT {
				return s.Time - start, nil
			}
			frac := (target - prevV) / (v[i] - prevV)
			return prevT + frac*(s.Time-prevT) - start, nil
		}
		prevT, prevV = s.Time, v[i]
	}
	return 0, ErrNoRise
}

// Characterize extracts the step statistics from a step capture. v are the
// (usually smoothed) velocities of samples and power the step power.
func Characterize(samples []telemetry.Sample, v []float64, power, tail float64) (StepResponse, error) {
	if len(samples) < 2 {
		return StepResponse{}, ErrTooFewSamples
	}
	final, err := FinalVelocity(samples, v, capture.PhaseStep, tail)
	if err != nil {
		return StepResponse{}, err
	}
	start, err := StepStart(samples)
	if err != nil {
		return StepResponse{}, err
	}
	ta, err := TimeConstant(samples, v, start, final)
	if err != nil {
		return StepResponse{}, err
	}

	resp := StepResponse{
		FinalVelocity: final,
		TimeConstant:  ta,
		StepStart:     start,
		Power:         power,
	}
	if power != 0 {
		resp.Gain = final / power
	}
	return resp, nil
}
