package plot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/geometry"
	"github.com/san-kum/motorlab/internal/telemetry"
	"github.com/san-kum/motorlab/internal/tf"
	"github.com/san-kum/motorlab/internal/tune"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("plot: no data")

var phaseColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}

func times(samples []telemetry.Sample) []float64 {
	ts := make([]float64, len(samples))
	for i, s := range samples {
		ts[i] = s.Time
	}
	return ts
}

// Step draws the captured velocity against the first-order model built from
// resp, with the capture phase overlaid on the same axis scaled so that the
// step phase sits at the final velocity.
func Step(title string, samples []telemetry.Sample, v []float64, resp analysis.StepResponse) (Figure, error) {
	if len(samples) == 0 || len(samples) != len(v) {
		return Figure{}, ErrNoData
	}
	p := newPlot(title, "time (ms)", "velocity (ticks/ms)")
	ts := times(samples)

	if err := addLine(p, "measured", ts, v, 0); err != nil {
		return Figure{}, err
	}

	model := analysis.FirstOrder{Gain: resp.Gain, TimeConstant: resp.TimeConstant}
	mv := make([]float64, len(ts))
	phase := make([]float64, len(ts))
	for i, s := range samples {
		if s.Step == 1 {
			mv[i] = model.At(s.Time, resp.Power, resp.StepStart)
		} else {
			mv[i] = math.NaN()
		}
		phase[i] = float64(s.Step) * resp.FinalVelocity
		if s.Step > 1 {
			phase[i] = 0
		}
	}
	if err := addLine(p, fmt.Sprintf("model ta=%.1fms", resp.TimeConstant), ts, mv, 1); err != nil {
		return Figure{}, err
	}
	if err := addDashed(p, "step", ts, phase, phaseColor); err != nil {
		return Figure{}, err
	}
	return single(p), nil
}

// Sine draws a frequency capture: the measured velocity, the fitted sine and
// the drive power divided by 1000.
func Sine(title string, samples []telemetry.Sample, v []float64, fit analysis.SineParams) (Figure, error) {
	if len(samples) == 0 || len(samples) != len(v) {
		return Figure{}, ErrNoData
	}
	p := newPlot(title, "time (ms)", "velocity (ticks/ms)")
	ts := times(samples)

	fitted := make([]float64, len(ts))
	drive := make([]float64, len(ts))
	for i, s := range samples {
		fitted[i] = fit.At(s.Time)
		drive[i] = math.NaN()
		if s.HasPower {
			drive[i] = s.Power / 1000
		}
	}
	if err := addLine(p, "measured", ts, v, 0); err != nil {
		return Figure{}, err
	}
	if err := addLine(p, fmt.Sprintf("fit f=%.4g/ms", fit.Frequency), ts, fitted, 1); err != nil {
		return Figure{}, err
	}
	if err := addDashed(p, "power/1000", ts, drive, phaseColor); err != nil {
		return Figure{}, err
	}
	return single(p), nil
}

// Bode draws measured frequency points over the magnitude and phase of model
// between the lowest and highest measured frequency.
func Bode(title string, points []analysis.FrequencyPoint, model tf.TransferFunction) (Figure, error) {
	if len(points) == 0 {
		return Figure{}, ErrNoData
	}
	freqs := make([]float64, len(points))
	mags := make([]float64, len(points))
	phases := make([]float64, len(points))
	for i, pt := range points {
		freqs[i] = pt.Frequency
		mags[i] = pt.MagnitudeDB()
		phases[i] = pt.Phase * 180 / math.Pi
	}

	lo, hi := floats.Min(freqs), floats.Max(freqs)
	if lo <= 0 {
		return Figure{}, fmt.Errorf("%w: non-positive frequency", ErrNoData)
	}
	if lo == hi {
		lo, hi = lo/10, hi*10
	}
	n := 200
	mf := make([]float64, n)
	floats.LogSpan(mf, lo/2, hi*2)
	mm := make([]float64, n)
	mp := make([]float64, n)
	for i, f := range mf {
		mag, ph := model.Bode(2 * math.Pi * f)
		mm[i] = 20 * math.Log10(mag)
		mp[i] = ph * 180 / math.Pi
	}

	mag := newPlot(title, "frequency (1/ms)", "magnitude (dB)")
	phase := newPlot("", "frequency (1/ms)", "phase (deg)")
	for _, q := range []*plot.Plot{mag, phase} {
		q.X.Scale = plot.LogScale{}
		q.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	phase.Y.Tick.Marker = limitedTicker(10, "%.0f")

	if err := addLine(mag, "model", mf, mm, 1); err != nil {
		return Figure{}, err
	}
	if err := addPoints(mag, "measured", freqs, mags, 0); err != nil {
		return Figure{}, err
	}
	if err := addLine(phase, "model", mf, mp, 1); err != nil {
		return Figure{}, err
	}
	if err := addPoints(phase, "measured", freqs, phases, 0); err != nil {
		return Figure{}, err
	}
	return Figure{Plots: [][]*plot.Plot{{mag}, {phase}}, Width: 8, Height: 10}, nil
}

// ClosedLoop draws the simulated step responses of evaluated gains against
// the unit target.
func ClosedLoop(title string, evals []tune.Evaluation) (Figure, error) {
	p := newPlot(title, "time (ms)", "output / target")
	drawn := 0
	var end float64
	for i, e := range evals {
		if len(e.Response.Times) == 0 {
			continue
		}
		if err := addLine(p, e.Gains.String(), e.Response.Times, e.Response.Values, i); err != nil {
			return Figure{}, err
		}
		end = math.Max(end, e.Response.Times[len(e.Response.Times)-1])
		drawn++
	}
	if drawn == 0 {
		return Figure{}, ErrNoData
	}
	if err := addDashed(p, "target", []float64{0, end}, []float64{1, 1}, phaseColor); err != nil {
		return Figure{}, err
	}
	return single(p), nil
}

// Requirements draws a 2x2 panel of a requirements profile: curvature,
// wheel velocities, wheel accelerations and wheel torques.
func Requirements(title string, prof *geometry.Profile) (Figure, error) {
	if prof == nil || len(prof.Times) == 0 {
		return Figure{}, ErrNoData
	}
	curv := newPlot(title, "time (s)", "curvature (1/m)")
	vel := newPlot("wheel velocity", "time (s)", "m/s")
	acc := newPlot("wheel acceleration", "time (s)", "m/s²")
	torque := newPlot("wheel torque", "time (s)", "N·m")
	for _, q := range []*plot.Plot{curv, vel, acc, torque} {
		q.X.Tick.Marker = limitedTicker(6, "%.2f")
	}
	torque.Y.Tick.Marker = limitedTicker(8, "%.1e")

	steps := []struct {
		p    *plot.Plot
		name string
		xs   []float64
		ys   []float64
		idx  int
	}{
		{curv, "", prof.Times, prof.Curvatures, 0},
		{vel, "left", prof.Times, prof.LeftVelocities, 0},
		{vel, "right", prof.Times, prof.RightVelocities, 1},
		{acc, "left", prof.AccTimes, prof.LeftAccelerations, 0},
		{acc, "right", prof.AccTimes, prof.RightAccelerations, 1},
		{torque, "left", prof.AccTimes, prof.LeftTorques, 0},
		{torque, "right", prof.AccTimes, prof.RightTorques, 1},
	}
	for _, s := range steps {
		if err := addLine(s.p, s.name, s.xs, s.ys, s.idx); err != nil {
			return Figure{}, err
		}
	}
	return Figure{Plots: [][]*plot.Plot{{curv, vel}, {acc, torque}}, Width: 14, Height: 10}, nil
}
