package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/motorlab/internal/dynamo"
)

type oscillator struct{}

func (s *oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *oscillator) StateDim() int   { return 2 }
func (s *oscillator) ControlDim() int { return 0 }

// firstOrder is dv/dt = (K*u - v)/tau, the motor velocity model.
type firstOrder struct {
	k, tau float64
}

func (f *firstOrder) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{(f.k*u[0] - x[0]) / f.tau}
}

func (f *firstOrder) StateDim() int   { return 1 }
func (f *firstOrder) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(&oscillator{}, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestFirstOrderStep(t *testing.T) {
	dyn := &firstOrder{k: 0.000825, tau: 44.8}
	u := dynamo.Control{10000}

	tests := []struct {
		name  string
		integ dynamo.Integrator
		tol   float64
	}{
		{"rk4", NewRK4(), 1e-6},
		{"euler", NewEuler(), 5e-2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := dynamo.State{0}
			dt := 1.0
			for i := 0; i < 45; i++ {
				x = tt.integ.Step(dyn, x, u, float64(i)*dt, dt)
			}
			final := dyn.k * u[0]
			expected := final * (1 - math.Exp(-45/dyn.tau))
			if math.Abs(x[0]-expected) > tt.tol*final {
				t.Errorf("v(45) = %.6f, want %.6f", x[0], expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	for _, name := range Names() {
		if _, err := Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}
	if _, err := Get("leapfrog"); err == nil {
		t.Error("expected error for unknown integrator")
	}
}

func TestRK4ResizesStages(t *testing.T) {
	integ := NewRK4()
	motor := &firstOrder{k: 0.000825, tau: 44.8}
	u := dynamo.Control{10000}

	integ.Step(&oscillator{}, dynamo.State{1, 0}, nil, 0, 0.01)
	got := integ.Step(motor, dynamo.State{0}, u, 0, 1)
	want := NewRK4().Step(motor, dynamo.State{0}, u, 0, 1)

	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("after a 2-state step: %v, want %v", got, want)
	}
}
