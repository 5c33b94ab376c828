package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/telemetry"
)

const (
	testFinal = 8.25
	testTa    = 44.8
	testPower = 10000.0
)

// firstOrderCapture builds an exact step capture: idle until t=100, then a
// first-order rise towards testFinal ticks/ms.
func firstOrderCapture() []telemetry.Sample {
	var samples []telemetry.Sample
	for t := 0; t <= 1200; t++ {
		s := telemetry.Sample{Time: float64(t), Step: capture.PhaseBefore}
		if t > 100 {
			s.Step = capture.PhaseStep
			s.Power, s.HasPower = testPower, true
		}
		if t > 1100 {
			s.Step = capture.PhaseAfter
		}
		if tau := float64(t - 100); tau > 0 {
			s.Position = testFinal * (tau - testTa*(1-math.Exp(-tau/testTa)))
		}
		samples = append(samples, s)
	}
	return samples
}

func TestVelocities(t *testing.T) {
	tests := []struct {
		name string
		in   []telemetry.Sample
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []telemetry.Sample{{Time: 1, Position: 5}}, []float64{0}},
		{
			"uniform",
			[]telemetry.Sample{{Time: 0, Position: 0}, {Time: 1, Position: 2}, {Time: 2, Position: 6}},
			[]float64{2, 4, 4},
		},
		{
			"uneven spacing",
			[]telemetry.Sample{{Time: 0, Position: 0}, {Time: 2, Position: 4}, {Time: 3, Position: 7}},
			[]float64{2, 3, 3},
		},
		{
			"repeated timestamp",
			[]telemetry.Sample{{Time: 0, Position: 0}, {Time: 1, Position: 3}, {Time: 1, Position: 3}, {Time: 2, Position: 5}},
			[]float64{3, 3, 2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Velocities(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("v[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSmooth(t *testing.T) {
	got := Smooth([]float64{0, 0, 3, 0, 0}, 3)
	want := []float64{0, 1, 1, 1, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("smooth[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSmoothPhases(t *testing.T) {
	steps := []int{0, 0, 0, 1, 1, 1, 2, 2}
	v := []float64{0, 0, 0, 3, 3, 3, 6, 0}
	samples := make([]telemetry.Sample, len(steps))
	for i, st := range steps {
		samples[i] = telemetry.Sample{Time: float64(i), Step: st}
	}

	got := SmoothPhases(samples, v, 3)
	want := []float64{0, 0, 0, 3, 3, 3, 3, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("smooth[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// a single window across the edge leaks the step into the idle phase
	if leaked := Smooth(v, 3); leaked[2] == 0 {
		t.Errorf("expected Smooth to mix phases, got %v", leaked[2])
	}
}

func TestWindow(t *testing.T) {
	var samples []telemetry.Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, telemetry.Sample{Time: float64(i * 500)})
	}

	if got := Window(samples, 1000, 0); len(got) != 8 {
		t.Errorf("open window kept %d samples, want 8", len(got))
	}
	got := Window(samples, 1000, 2500)
	if len(got) != 3 || got[0].Time != 1000 || got[2].Time != 2000 {
		t.Errorf("Window(1000, 2500) = %v", got)
	}
}

func TestCharacterize(t *testing.T) {
	samples := firstOrderCapture()
	v := Velocities(samples)

	resp, err := Characterize(samples, v, testPower, DefaultTail)
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}
	if resp.StepStart != 100 {
		t.Errorf("step start = %v, want 100", resp.StepStart)
	}
	if math.Abs(resp.FinalVelocity-testFinal) > 1e-3 {
		t.Errorf("final velocity = %v, want %v", resp.FinalVelocity, testFinal)
	}
	if math.Abs(resp.TimeConstant-testTa) > 1 {
		t.Errorf("time constant = %v, want %v", resp.TimeConstant, testTa)
	}
	if math.Abs(resp.Gain-testFinal/testPower) > 1e-7 {
		t.Errorf("gain = %v", resp.Gain)
	}
}

func TestCharacterizeNoStep(t *testing.T) {
	samples := []telemetry.Sample{{Time: 0}, {Time: 1}, {Time: 2}}
	_, err := Characterize(samples, Velocities(samples), testPower, DefaultTail)
	if !errors.Is(err, ErrNoStep) {
		t.Errorf("err = %v, want ErrNoStep", err)
	}
}

func TestTimeConstantNeverRises(t *testing.T) {
	samples := firstOrderCapture()
	v := make([]float64, len(samples))
	_, err := TimeConstant(samples, v, 100, 5)
	if !errors.Is(err, ErrNoRise) {
		t.Errorf("err = %v, want ErrNoRise", err)
	}
}

func TestTimeConstantReverse(t *testing.T) {
	samples := firstOrderCapture()
	for i := range samples {
		samples[i].Position = -samples[i].Position
	}
	v := Velocities(samples)
	resp, err := Characterize(samples, v, -testPower, DefaultTail)
	if err != nil {
		t.Fatalf("Characterize: %v", err)
	}
	if math.Abs(resp.TimeConstant-testTa) > 1 {
		t.Errorf("time constant = %v, want %v", resp.TimeConstant, testTa)
	}
	if resp.Gain <= 0 {
		t.Errorf("gain = %v, want positive for a reversed drive", resp.Gain)
	}
}

func TestFitSine(t *testing.T) {
	want := SineParams{Offset: 3.2, Amplitude: 2.4, Frequency: 0.002, Phase: 0.3}

	var ts, vs []float64
	for ti := 1000.0; ti < 5000; ti++ {
		ts = append(ts, ti)
		vs = append(vs, want.At(ti)+0.05*math.Sin(ti*1.7))
	}

	fit, err := FitSine(ts, vs, DefaultSineGuess)
	if err != nil {
		t.Fatalf("FitSine: %v", err)
	}

	checks := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"offset", fit.Offset, want.Offset, 0.02},
		{"amplitude", fit.Amplitude, want.Amplitude, 0.02},
		{"frequency", fit.Frequency, want.Frequency, 1e-5},
		{"phase", fit.Phase, want.Phase, 0.05},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > c.tol {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	se := fit.StdErr()
	if len(se) != 4 {
		t.Fatalf("stderr has %d entries", len(se))
	}
	for i, e := range se {
		if e <= 0 || e > 0.1 {
			t.Errorf("stderr[%d] = %v", i, e)
		}
	}
	if fit.RMSE() > 0.06 {
		t.Errorf("rmse = %v", fit.RMSE())
	}
}

func TestFitSineTooFewPoints(t *testing.T) {
	_, err := FitSine([]float64{1, 2, 3}, []float64{1, 2, 3}, DefaultSineGuess)
	if !errors.Is(err, ErrTooFewSamples) {
		t.Errorf("err = %v, want ErrTooFewSamples", err)
	}
}

func TestFitFirstOrder(t *testing.T) {
	truth := FirstOrder{Gain: testFinal / testPower, TimeConstant: testTa}

	var ts, vs []float64
	for ti := 100.0; ti <= 1100; ti++ {
		ts = append(ts, ti)
		vs = append(vs, truth.At(ti, testPower, 100))
	}

	fit, err := FitFirstOrder(ts, vs, testPower, 100, FirstOrder{Gain: truth.Gain * 1.2, TimeConstant: 30})
	if err != nil {
		t.Fatalf("FitFirstOrder: %v", err)
	}
	if math.Abs(fit.Gain-truth.Gain)/truth.Gain > 0.01 {
		t.Errorf("gain = %v, want %v", fit.Gain, truth.Gain)
	}
	if math.Abs(fit.TimeConstant-truth.TimeConstant) > 0.5 {
		t.Errorf("time constant = %v, want %v", fit.TimeConstant, truth.TimeConstant)
	}
}

func TestDominantFrequency(t *testing.T) {
	v := make([]float64, 1000)
	for i := range v {
		v[i] = 4 + math.Sin(2*math.Pi*0.01*float64(i))
	}
	f, err := DominantFrequency(v, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(f-0.01) > 1e-4 {
		t.Errorf("dominant frequency = %v, want 0.01", f)
	}

	if _, err := DominantFrequency(v[:2], 1); !errors.Is(err, ErrTooFewSamples) {
		t.Errorf("err = %v, want ErrTooFewSamples", err)
	}
}

func TestResample(t *testing.T) {
	got := Resample([]float64{0, 2, 3}, []float64{0, 4, 5}, 1)
	want := []float64{0, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("resample[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBodePoint(t *testing.T) {
	p := BodePoint(SineParams{Offset: 4, Amplitude: -2.5, Frequency: 0.002, Phase: 0.5}, 5000)
	if math.Abs(p.Magnitude-0.0005) > 1e-12 {
		t.Errorf("magnitude = %v", p.Magnitude)
	}
	if math.Abs(p.Phase-(0.5-math.Pi)) > 1e-12 {
		t.Errorf("phase = %v", p.Phase)
	}
	if math.Abs(p.Omega()-2*math.Pi*0.002) > 1e-15 {
		t.Errorf("omega = %v", p.Omega())
	}
}
