package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/device"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/telemetry"
)

const scenarioYAML = `
name: characterize
description: both motors, two powers on the left
steps:
  - kind: step
    side: left
    powers: [5000, 10000]
    before_ms: 100
    step_ms: 600
    after_ms: 100
  - kind: step
    side: right
    before_ms: 100
    step_ms: 600
    after_ms: 100
  - kind: frequency
    frequency: 0.005
    run_ms: 1500
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(sc.Steps))
	}

	params := device.DefaultMotorParams()
	sess := link.NewSession(device.New(params, params, 0), nil)
	defer sess.Close()

	base := config.DefaultConfig()
	base.Analysis.FitFrom = 300
	st := storage.New(t.TempDir())
	r := &Runner{Base: base, Link: sess, Store: st}

	runs, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 4 {
		t.Fatalf("runs = %d, want 4", len(runs))
	}
	if runs[2].Meta.Side != telemetry.Right {
		t.Errorf("third run side = %s, want right", runs[2].Meta.Side)
	}
	if runs[3].Meta.Kind != storage.KindFrequency {
		t.Errorf("last run kind = %s", runs[3].Meta.Kind)
	}

	stored, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 4 {
		t.Errorf("stored runs = %d, want 4", len(stored))
	}

	// the simulated motor is linear: the gain does not depend on power
	curve := GainCurve(runs)
	if len(curve) != 3 {
		t.Fatalf("gain points = %d, want 3", len(curve))
	}
	if curve[0].Power != 5000 || curve[1].Power != 10000 {
		t.Errorf("powers = %v, %v", curve[0].Power, curve[1].Power)
	}
	for _, p := range curve {
		if rel := math.Abs(p.Gain-params.Gain) / params.Gain; rel > 0.03 {
			t.Errorf("gain at %v = %v, want %v", p.Power, p.Gain, params.Gain)
		}
	}

	if base.Step.Power != config.DefaultConfig().Step.Power {
		t.Error("scenario modified the base configuration")
	}
}

func TestLoadScenarioRejectsUnknownKind(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "steps:\n  - kind: ramp\n"))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := LoadScenario(writeScenario(t, "steps:\n  - kind: step\n    side: up\n")); err == nil {
		t.Error("expected an error for an unknown side")
	}
}
