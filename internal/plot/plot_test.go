package plot

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/geometry"
	"github.com/san-kum/motorlab/internal/telemetry"
	"github.com/san-kum/motorlab/internal/tf"
	"github.com/san-kum/motorlab/internal/tune"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func stepCapture() ([]telemetry.Sample, []float64, analysis.StepResponse) {
	resp := analysis.StepResponse{FinalVelocity: 8, TimeConstant: 40, Gain: 8e-4, StepStart: 100, Power: 10000}
	model := analysis.FirstOrder{Gain: resp.Gain, TimeConstant: resp.TimeConstant}
	var samples []telemetry.Sample
	var v []float64
	for i := 0; i < 400; i++ {
		t := float64(i + 1)
		s := telemetry.Sample{Time: t}
		switch {
		case t <= 100:
		case t <= 300:
			s.Step, s.Power, s.HasPower = 1, 10000, true
		default:
			s.Step, s.HasPower = 2, true
		}
		samples = append(samples, s)
		v = append(v, model.At(math.Min(t, 300), 10000, 100))
	}
	return samples, v, resp
}

func writeFigure(t *testing.T, fig Figure) {
	t.Helper()
	var buf bytes.Buffer
	if err := fig.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatal("output is not a png")
	}
}

func TestStepFigure(t *testing.T) {
	samples, v, resp := stepCapture()
	fig, err := Step("step", samples, v, resp)
	if err != nil {
		t.Fatal(err)
	}
	writeFigure(t, fig)
}

func TestStepFigureMismatch(t *testing.T) {
	samples, v, resp := stepCapture()
	if _, err := Step("step", samples, v[:10], resp); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestSineFigure(t *testing.T) {
	fit := analysis.SineParams{Offset: 3, Amplitude: 2, Frequency: 0.004}
	var samples []telemetry.Sample
	var v []float64
	for i := 0; i < 500; i++ {
		t := float64(i)
		samples = append(samples, telemetry.Sample{Time: t, Power: 5000 + 5000*math.Sin(2*math.Pi*0.004*t), HasPower: i >= 10})
		v = append(v, fit.At(t)+0.1*math.Sin(float64(i)))
	}
	fig, err := Sine("sine", samples, v, fit)
	if err != nil {
		t.Fatal(err)
	}
	writeFigure(t, fig)
}

func TestBodeFigure(t *testing.T) {
	motor := tf.Motor(45, 8e-4)
	var points []analysis.FrequencyPoint
	for _, f := range []float64{0.001, 0.003, 0.01} {
		mag, ph := motor.Bode(2 * math.Pi * f)
		points = append(points, analysis.FrequencyPoint{Frequency: f, Magnitude: mag, Phase: ph})
	}
	fig, err := Bode("bode", points, motor)
	if err != nil {
		t.Fatal(err)
	}
	if len(fig.Plots) != 2 {
		t.Errorf("expected magnitude and phase rows, got %d", len(fig.Plots))
	}
	writeFigure(t, fig)

	if _, err := Bode("bode", nil, motor); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestClosedLoopFigure(t *testing.T) {
	opts := tune.DefaultOptions()
	opts.Duration = 300
	eval, err := tune.Evaluate(context.Background(), tf.Motor(45, 8e-4), tune.Gains{P: 1000, I: 20}, opts)
	if err != nil {
		t.Fatal(err)
	}
	fig, err := ClosedLoop("tune", []tune.Evaluation{eval})
	if err != nil {
		t.Fatal(err)
	}
	writeFigure(t, fig)

	if _, err := ClosedLoop("tune", nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRequirementsFigure(t *testing.T) {
	curve := geometry.CornerCurve(90*physic.MilliMetre, 12*physic.MilliMetre)
	chassis := geometry.Chassis{Wheelbase: 72 * physic.MilliMetre, WheelRadius: 16 * physic.MilliMetre, Mass: 87 * physic.Gram}
	prof, err := geometry.Requirements(curve, chassis, physic.MetrePerSecond*4/10, 200)
	if err != nil {
		t.Fatal(err)
	}
	fig, err := Requirements("corner", prof)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "nested", "req.png")
	if err := SavePNG(fig, path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("saved file is not a png")
	}
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		n    int
		want []float64
	}{
		{"short", []float64{1, 2}, 5, []float64{1, 2}},
		{"halve", []float64{1, 3, 5, 7}, 2, []float64{2, 6}},
		{"unlimited", []float64{1, 2, 3}, 0, []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downsample(tt.in, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	v := make([]float64, 300)
	for i := range v {
		v[i] = math.Sin(float64(i) / 20)
	}
	out := Terminal("velocity", 8, 60, v, []float64{math.NaN(), 0.2, 0.5})
	if !strings.Contains(out, "velocity") {
		t.Errorf("caption missing from chart:\n%s", out)
	}
	if Terminal("empty", 8, 60, []float64{math.NaN()}) != "" {
		t.Error("expected empty chart for non-finite data")
	}
}
