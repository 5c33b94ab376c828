package analysis_test

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/device"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/telemetry"
)

func TestCharacterizeSimulatedMotor(t *testing.T) {
	params := device.DefaultMotorParams()
	sess := link.NewSession(device.New(params, params, 5000), nil)
	defer sess.Close()

	plan := capture.StepPlan{Side: telemetry.Left, Power: 10000, Before: 100, Step: 1000, After: 100}
	res, err := capture.Step(context.Background(), sess, plan, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	v := analysis.Smooth(analysis.Velocities(res.Samples), 9)
	resp, err := analysis.Characterize(res.Samples, v, float64(plan.Power), analysis.DefaultTail)
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}

	if rel := math.Abs(resp.Gain-params.Gain) / params.Gain; rel > 0.02 {
		t.Errorf("gain = %v, want %v", resp.Gain, params.Gain)
	}
	if math.Abs(resp.TimeConstant-params.TimeConstant) > 3 {
		t.Errorf("time constant = %v, want %v", resp.TimeConstant, params.TimeConstant)
	}
}
