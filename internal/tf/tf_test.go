package tf

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestPolyArithmetic(t *testing.T) {
	p := Poly{1, 2}    // s + 2
	q := Poly{1, 0, 3} // s² + 3

	sum := p.Add(q)
	if want := (Poly{1, 1, 5}); !equalPoly(sum, want) {
		t.Errorf("Add = %v, want %v", sum, want)
	}
	prod := p.Mul(q)
	if want := (Poly{1, 2, 3, 6}); !equalPoly(prod, want) {
		t.Errorf("Mul = %v, want %v", prod, want)
	}
	if got := q.At(2); got != 7 {
		t.Errorf("At(2) = %v, want 7", got)
	}
	if got := (Poly{0, 0, 4}).Degree(); got != 0 {
		t.Errorf("Degree = %d, want 0", got)
	}
}

func TestPolyString(t *testing.T) {
	tests := []struct {
		p    Poly
		want string
	}{
		{Poly{44.8, 1}, "44.8 s + 1"},
		{Poly{1, 0}, "s"},
		{Poly{2, -3, 0.5}, "2 s^2 - 3 s + 0.5"},
		{Poly{0}, "0"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", []float64(tt.p), got, tt.want)
		}
	}
}

func TestMotor(t *testing.T) {
	m := Motor(44.8, 0.000825)

	if got := m.DCGain(); math.Abs(got-0.000825) > 1e-15 {
		t.Errorf("DCGain = %v", got)
	}
	poles := m.Poles()
	if len(poles) != 1 || math.Abs(real(poles[0])+1/44.8) > 1e-12 {
		t.Errorf("poles = %v", poles)
	}

	// corner frequency: half power
	mag, phase := m.Bode(1 / 44.8)
	if math.Abs(mag-0.000825/math.Sqrt2) > 1e-12 {
		t.Errorf("corner magnitude = %v", mag)
	}
	if math.Abs(phase+math.Pi/4) > 1e-12 {
		t.Errorf("corner phase = %v", phase)
	}
}

func TestPIDHasIntegrator(t *testing.T) {
	pid := PID(2, 0.5, 0.1)
	if !math.IsInf(pid.DCGain(), 1) {
		t.Errorf("PID DCGain = %v, want +Inf", pid.DCGain())
	}
	if got := pid.Eval(1); math.Abs(real(got)-2.6) > 1e-12 {
		t.Errorf("PID(1) = %v, want 2.6", got)
	}
	if pid.Proper() {
		t.Error("PID with derivative reported proper")
	}
	if !PID(2, 0.5, 0).Proper() {
		t.Error("PI reported improper")
	}
}

func TestFeedbackStepResponse(t *testing.T) {
	motor := Motor(44.8, 0.000825)
	closed := Feedback(Series(PID(1000, 20, 0), motor))

	if !closed.Stable() {
		t.Fatalf("closed loop %s is unstable", closed)
	}
	if got := closed.DCGain(); math.Abs(got-1) > 1e-12 {
		t.Errorf("closed loop DCGain = %v, want 1", got)
	}

	resp, err := StepResponse(context.Background(), closed, 2000, 0.1)
	if err != nil {
		t.Fatalf("StepResponse: %v", err)
	}
	if len(resp.Times) != 20001 {
		t.Errorf("got %d points", len(resp.Times))
	}
	if math.Abs(resp.Final()-1) > 0.01 {
		t.Errorf("final value = %v, want 1", resp.Final())
	}
}

func TestStepResponseFirstOrder(t *testing.T) {
	m := Motor(44.8, 2)
	resp, err := StepResponse(context.Background(), m, 200, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	for i, tm := range resp.Times {
		want := 2 * (1 - math.Exp(-tm/44.8))
		if math.Abs(resp.Values[i]-want) > 1e-6 {
			t.Fatalf("y(%v) = %v, want %v", tm, resp.Values[i], want)
		}
	}
}

func TestStepResponseBiproper(t *testing.T) {
	// (s + 2)/(s + 1): jumps to 1 at t=0, settles at 2
	g, err := New(Poly{1, 2}, Poly{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := StepResponse(context.Background(), g, 20, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(resp.Values[0]-1) > 1e-12 {
		t.Errorf("y(0) = %v, want 1", resp.Values[0])
	}
	if math.Abs(resp.Final()-2) > 1e-6 {
		t.Errorf("final = %v, want 2", resp.Final())
	}
}

func TestStepResponseImproper(t *testing.T) {
	_, err := StepResponse(context.Background(), PID(1, 1, 1), 10, 0.1)
	if !errors.Is(err, ErrImproper) {
		t.Errorf("err = %v, want ErrImproper", err)
	}
}

func TestNewZeroDenominator(t *testing.T) {
	if _, err := New(Poly{1}, Poly{0, 0}); !errors.Is(err, ErrZeroDenominator) {
		t.Errorf("err = %v, want ErrZeroDenominator", err)
	}
}

func equalPoly(a, b Poly) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestPIDWithoutIntegral(t *testing.T) {
	pd := PID(3, 0, 0)
	if got := pd.DCGain(); got != 3 {
		t.Errorf("P DCGain = %v, want 3", got)
	}
	closed := Feedback(Series(pd, Motor(10, 1)))
	if !closed.Stable() {
		t.Errorf("proportional loop %s is unstable", closed)
	}
	if got := closed.DCGain(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("closed loop DCGain = %v, want 0.75", got)
	}
}
