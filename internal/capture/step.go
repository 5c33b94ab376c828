package capture

import (
	"context"
	"fmt"

	"github.com/san-kum/motorlab/internal/telemetry"
)

// Step phases.
const (
	PhaseBefore = 0
	PhaseStep   = 1
	PhaseAfter  = 2
)

// StepPlan is an open-loop step: idle, constant power, idle.
type StepPlan struct {
	Side  telemetry.Side `json:"side" yaml:"side"`
	Power int            `json:"power" yaml:"power"`
	// Phase durations in milliseconds.
	Before int64 `json:"before_ms" yaml:"before_ms"`
	Step   int64 `json:"step_ms" yaml:"step_ms"`
	After  int64 `json:"after_ms" yaml:"after_ms"`
}

func DefaultStepPlan() StepPlan {
	return StepPlan{
		Side:   telemetry.Left,
		Power:  10000,
		Before: 1000,
		Step:   5000,
		After:  5000,
	}
}

func (p StepPlan) Validate() error {
	if p.Before <= 0 || p.Step <= 0 || p.After <= 0 {
		return fmt.Errorf("%w: phase durations must be positive (%d/%d/%d ms)", ErrInvalidPlan, p.Before, p.Step, p.After)
	}
	if p.Power == 0 {
		return fmt.Errorf("%w: step power is zero", ErrInvalidPlan)
	}
	return nil
}

// Step runs the plan: the motor is idle for Before ms, driven at Power for
// Step ms, then idle again for After ms. Each phase clock restarts at the
// frame that triggered the transition.
func Step(ctx context.Context, link Link, plan StepPlan, obs Observer) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := link.EnableReports(plan.Side); err != nil {
		return nil, err
	}

	rec := newRecorder(plan.Side, obs)
	var (
		phase      = PhaseBefore
		phaseStart int64
		power      float64
		hasPower   bool
	)

	for {
		frame, err := rec.read(ctx, link)
		if err != nil {
			return nil, rec.fail(err)
		}

		wasStarted := rec.started
		t, pos, ok := rec.frame(frame)
		if !ok {
			if !wasStarted && rec.started {
				phaseStart = rec.result.Origin
			}
			continue
		}

		rec.record(telemetry.Sample{
			Time:     float64(t - rec.result.Origin),
			Position: float64(pos),
			Step:     phase,
			Power:    power,
			HasPower: hasPower,
		})

		elapsed := t - phaseStart
		switch {
		case phase == PhaseBefore && elapsed > plan.Before:
			if err := link.SetPower(plan.Side, plan.Power); err != nil {
				return nil, rec.fail(err)
			}
			power, hasPower = float64(plan.Power), true
			phase, phaseStart = PhaseStep, t
		case phase == PhaseStep && elapsed > plan.Step:
			if err := link.SetPower(plan.Side, 0); err != nil {
				return nil, rec.fail(err)
			}
			power = 0
			phase, phaseStart = PhaseAfter, t
		case phase == PhaseAfter && elapsed > plan.After:
			if err := link.DisableReports(plan.Side); err != nil {
				return nil, rec.fail(err)
			}
			return rec.result, nil
		}
	}
}
