package control

import (
	"testing"

	"github.com/san-kum/motorlab/internal/dynamo"
)

func TestConstant(t *testing.T) {
	c := NewConstant(10000)
	c.Start = 5

	if u := c.Compute(nil, 4.9); u[0] != 0 {
		t.Errorf("expected 0 before start, got %f", u[0])
	}
	if u := c.Compute(nil, 5); u[0] != 10000 {
		t.Errorf("expected 10000 after start, got %f", u[0])
	}
}

func TestPID(t *testing.T) {
	ctrl := NewPID(10.0, 0.1, 5.0, 0.0)
	u := ctrl.Compute(dynamo.State{1.0}, 0.0)
	if len(u) != 1 {
		t.Fatalf("expected 1 control, got %d", len(u))
	}
	if u[0] >= 0 {
		t.Error("PID should output negative control for positive measurement above target")
	}
}

func TestPIDTerms(t *testing.T) {
	ctrl := NewPID(2, 0.5, 1, 10)

	// first call is proportional only
	if u := ctrl.Compute(dynamo.State{0}, 0); u[0] != 20 {
		t.Fatalf("first output = %f, want 20", u[0])
	}

	// err 8 over dt 1: P=16, I=0.5*8=4, D=(8-10)/1=-2
	if u := ctrl.Compute(dynamo.State{2}, 1); u[0] != 18 {
		t.Errorf("second output = %f, want 18", u[0])
	}
}

func TestPIDSaturationStopsWindup(t *testing.T) {
	ctrl := NewPID(1, 1, 0, 100)
	ctrl.Limit = 10

	for i := 0; i < 50; i++ {
		u := ctrl.Compute(dynamo.State{0}, float64(i))
		if u[0] > 10 {
			t.Fatalf("output %f exceeds limit", u[0])
		}
	}
	if ctrl.integral != 0 {
		t.Errorf("integral wound up to %f while saturated", ctrl.integral)
	}
}

func TestPIDReset(t *testing.T) {
	ctrl := NewPID(1, 1, 1, 1)
	ctrl.Compute(dynamo.State{0}, 0)
	ctrl.Compute(dynamo.State{0}, 1)
	ctrl.Reset()

	if ctrl.integral != 0 || !ctrl.first {
		t.Error("reset did not clear state")
	}
}
