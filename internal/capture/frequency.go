package capture

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/motorlab/internal/telemetry"
)

// FrequencyPlan drives the motor with a sinusoidal power
// gain/2 + gain/2*sin(2π t f) for RunTime milliseconds.
type FrequencyPlan struct {
	Side    telemetry.Side `json:"side" yaml:"side"`
	RunTime int64          `json:"run_ms" yaml:"run_ms"`
	// Frequency in cycles per millisecond.
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Gain      float64 `json:"gain" yaml:"gain"`
	// UpdateEvery is the power update period in milliseconds.
	UpdateEvery int64 `json:"update_ms" yaml:"update_ms"`
}

func DefaultFrequencyPlan() FrequencyPlan {
	return FrequencyPlan{
		Side:        telemetry.Left,
		RunTime:     5000,
		Frequency:   0.002,
		Gain:        10000,
		UpdateEvery: 10,
	}
}

func (p FrequencyPlan) Validate() error {
	if p.RunTime <= 0 {
		return fmt.Errorf("%w: run time must be positive, got %d ms", ErrInvalidPlan, p.RunTime)
	}
	if p.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be positive, got %g", ErrInvalidPlan, p.Frequency)
	}
	if p.UpdateEvery <= 0 {
		return fmt.Errorf("%w: update period must be positive, got %d ms", ErrInvalidPlan, p.UpdateEvery)
	}
	return nil
}

// Drive returns the commanded power at time t (ms).
func (p FrequencyPlan) Drive(t float64) float64 {
	return p.Gain/2 + p.Gain/2*math.Sin(2*math.Pi*t*p.Frequency)
}

// Frequency runs the plan. Samples record the power in force when the
// frame arrived; the update triggered by that frame applies to later ones.
func Frequency(ctx context.Context, link Link, plan FrequencyPlan, obs Observer) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := link.EnableReports(plan.Side); err != nil {
		return nil, err
	}

	rec := newRecorder(plan.Side, obs)
	var (
		power    float64
		hasPower bool
	)

	for {
		frame, err := rec.read(ctx, link)
		if err != nil {
			return nil, rec.fail(err)
		}

		t, pos, ok := rec.frame(frame)
		if !ok {
			continue
		}
		rel := t - rec.result.Origin

		rec.record(telemetry.Sample{
			Time:     float64(rel),
			Position: float64(pos),
			Power:    power,
			HasPower: hasPower,
		})

		if rel%plan.UpdateEvery == 0 {
			power, hasPower = plan.Drive(float64(rel)), true
			if err := link.SetPower(plan.Side, int(power)); err != nil {
				return nil, rec.fail(err)
			}
		}

		if rel >= plan.RunTime {
			if err := link.SetPower(plan.Side, 0); err != nil {
				return nil, rec.fail(err)
			}
			if err := link.DisableReports(plan.Side); err != nil {
				return nil, rec.fail(err)
			}
			return rec.result, nil
		}
	}
}

// SweepResult pairs a plan with its capture.
type SweepResult struct {
	Plan   FrequencyPlan
	Result *Result
}

// Sweep runs a frequency capture for each frequency in turn. Partial
// results are returned alongside an error.
func Sweep(ctx context.Context, link Link, base FrequencyPlan, freqs []float64, obs Observer) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(freqs))
	for _, f := range freqs {
		plan := base
		plan.Frequency = f
		res, err := Frequency(ctx, link, plan, obs)
		if err != nil {
			return results, fmt.Errorf("sweep at %g cycles/ms: %w", f, err)
		}
		results = append(results, SweepResult{Plan: plan, Result: res})
	}
	return results, nil
}
