// Package experiment runs the capture-analyze pipeline: drive the motor over
// a link, derive velocities, extract the first-order statistics or fit the
// frequency response, and keep everything as a stored run.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/metrics"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/telemetry"
	"github.com/san-kum/motorlab/internal/tf"
)

var ErrWrongKind = errors.New("experiment: wrong run kind")

// Run is one capture with its derived data.
type Run struct {
	Meta     storage.RunMetadata
	Samples  []telemetry.Sample
	Velocity []float64
}

// Experiment drives captures with one configuration over one link.
type Experiment struct {
	cfg    *config.Config
	link   capture.Link
	logger *log.Logger
}

func New(cfg *config.Config, link capture.Link, logger *log.Logger) *Experiment {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Experiment{cfg: cfg, link: link, logger: logger}
}

type parseErrorCounter interface {
	ParseErrors() int
}

func (e *Experiment) newRun(kind string, side telemetry.Side, res *capture.Result) *Run {
	run := &Run{
		Meta: storage.RunMetadata{
			Kind:      kind,
			Side:      side,
			Port:      e.cfg.Serial.Port,
			Timestamp: time.Now(),
		},
	}
	if res != nil {
		run.Samples = res.Samples
		run.Meta.Origin = res.Origin
		run.Meta.Skipped = res.Skipped
		run.Meta.Samples = len(res.Samples)
	}
	if pc, ok := e.link.(parseErrorCounter); ok {
		run.Meta.ParseErrors = pc.ParseErrors()
	}
	return run
}

// partial returns the samples a failed capture recorded.
func partial(err error) *capture.Result {
	var cerr *capture.Error
	if errors.As(err, &cerr) {
		return cerr.Partial
	}
	return nil
}

// Step captures a step response and characterizes it. On a capture error
// the partial run is returned with the error.
func (e *Experiment) Step(ctx context.Context, obs capture.Observer) (*Run, error) {
	plan := e.cfg.Step
	e.logger.Info("step capture", "side", plan.Side, "power", plan.Power,
		"before", plan.Before, "step", plan.Step, "after", plan.After)

	res, err := capture.Step(ctx, e.link, plan, obs)
	if err != nil {
		run := e.newRun(storage.KindStep, plan.Side, partial(err))
		run.Meta.StepPlan = &plan
		run.Meta.Error = err.Error()
		return run, err
	}
	run := e.newRun(storage.KindStep, plan.Side, res)
	run.Meta.StepPlan = &plan
	e.logger.Debug("captured", "samples", len(res.Samples), "skipped", res.Skipped)

	if err := AnalyzeStep(run, e.cfg.Analysis); err != nil {
		return run, err
	}
	if _, err := FitStep(run); err != nil {
		e.logger.Warn("first-order fit failed", "err", err)
	}
	return run, nil
}

// Frequency captures a sinusoidal drive and fits the response.
func (e *Experiment) Frequency(ctx context.Context, obs capture.Observer) (*Run, error) {
	return e.frequency(ctx, e.cfg.Frequency, obs)
}

func (e *Experiment) frequency(ctx context.Context, plan capture.FrequencyPlan, obs capture.Observer) (*Run, error) {
	e.logger.Info("frequency capture", "side", plan.Side, "frequency", plan.Frequency,
		"gain", plan.Gain, "run", plan.RunTime)

	res, err := capture.Frequency(ctx, e.link, plan, obs)
	if err != nil {
		run := e.newRun(storage.KindFrequency, plan.Side, partial(err))
		run.Meta.FrequencyPlan = &plan
		run.Meta.Error = err.Error()
		return run, err
	}
	run := e.newRun(storage.KindFrequency, plan.Side, res)
	run.Meta.FrequencyPlan = &plan

	if _, err := AnalyzeFrequency(run, e.cfg.Analysis); err != nil {
		return run, err
	}
	return run, nil
}

// Sweep runs a frequency capture per configured frequency. The runs share
// a group name. On a failure the runs so far, including the partial run of
// the failed capture, are returned with the error.
func (e *Experiment) Sweep(ctx context.Context, obs capture.Observer) ([]*Run, error) {
	group := fmt.Sprintf("sweep_%d", time.Now().Unix())
	runs := make([]*Run, 0, len(e.cfg.Sweep.Frequencies))
	for _, f := range e.cfg.Sweep.Frequencies {
		plan := e.cfg.Frequency
		plan.Frequency = f
		run, err := e.frequency(ctx, plan, obs)
		if run != nil {
			run.Meta.Group = group
		}
		if err != nil {
			if run != nil && len(run.Samples) > 0 {
				runs = append(runs, run)
			}
			return runs, fmt.Errorf("sweep at %g cycles/ms: %w", f, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Save stores the run and records its ID.
func Save(st *storage.Store, run *Run) (string, error) {
	id, err := st.Save(run.Meta, run.Samples)
	if err != nil {
		return "", err
	}
	run.Meta.ID = id
	return id, nil
}

// Load reads a stored run back.
func Load(st *storage.Store, id string) (*Run, error) {
	meta, err := st.Load(id)
	if err != nil {
		return nil, err
	}
	samples, err := st.LoadSamples(id)
	if err != nil {
		return nil, err
	}
	return &Run{Meta: *meta, Samples: samples}, nil
}

// AnalyzeStep smooths the velocity and extracts the final velocity, time
// constant and gain.
func AnalyzeStep(run *Run, cfg config.AnalysisConfig) error {
	if run.Meta.Kind != storage.KindStep || run.Meta.StepPlan == nil {
		return fmt.Errorf("%w: %s is not a step run", ErrWrongKind, run.Meta.ID)
	}
	run.Velocity = analysis.SmoothPhases(run.Samples, analysis.Velocities(run.Samples), cfg.Smooth)
	resp, err := analysis.Characterize(run.Samples, run.Velocity, float64(run.Meta.StepPlan.Power), cfg.Tail)
	if err != nil {
		return fmt.Errorf("step analysis: %w", err)
	}
	run.Meta.StepResponse = &resp
	return nil
}

// FitStep fits a first-order response to the step phase, starting from the
// closed-form statistics.
func FitStep(run *Run) (analysis.FirstOrderFit, error) {
	resp := run.Meta.StepResponse
	if resp == nil {
		return analysis.FirstOrderFit{}, fmt.Errorf("%w: %s has no step statistics", ErrWrongKind, run.Meta.ID)
	}
	idx := analysis.Phase(run.Samples, 1)
	t := make([]float64, len(idx))
	v := make([]float64, len(idx))
	for i, j := range idx {
		t[i], v[i] = run.Samples[j].Time, run.Velocity[j]
	}
	guess := analysis.FirstOrder{Gain: resp.Gain, TimeConstant: resp.TimeConstant}
	fit, err := analysis.FitFirstOrder(t, v, resp.Power, resp.StepStart, guess)
	if err != nil {
		return fit, fmt.Errorf("first-order fit: %w", err)
	}
	run.Meta.FirstOrder = &fit.FirstOrder
	return fit, nil
}

// StepMetrics scores the measured step phase against its final velocity,
// with time measured from the step start.
func StepMetrics(run *Run) (metrics.StepMetrics, error) {
	resp := run.Meta.StepResponse
	if resp == nil || len(run.Velocity) != len(run.Samples) {
		return metrics.StepMetrics{}, fmt.Errorf("%w: %s has no step statistics", ErrWrongKind, run.Meta.ID)
	}
	idx := analysis.Phase(run.Samples, 1)
	t := make([]float64, len(idx))
	v := make([]float64, len(idx))
	for i, j := range idx {
		t[i], v[i] = run.Samples[j].Time-resp.StepStart, run.Velocity[j]
	}
	return metrics.Step(t, v, resp.FinalVelocity), nil
}

// AnalyzeFrequency fits a sine to the velocity after cfg.FitFrom and
// derives the Bode point against the drive.
func AnalyzeFrequency(run *Run, cfg config.AnalysisConfig) (analysis.SineFit, error) {
	plan := run.Meta.FrequencyPlan
	if run.Meta.Kind != storage.KindFrequency || plan == nil {
		return analysis.SineFit{}, fmt.Errorf("%w: %s is not a frequency run", ErrWrongKind, run.Meta.ID)
	}
	run.Velocity = analysis.Smooth(analysis.Velocities(run.Samples), cfg.Smooth)

	t, v := run.After(cfg.FitFrom)
	if len(v) == 0 {
		return analysis.SineFit{}, fmt.Errorf("frequency analysis: no samples after %g ms: %w", cfg.FitFrom, analysis.ErrTooFewSamples)
	}

	guess := cfg.SineGuess
	guess.Frequency = plan.Frequency
	guess.Offset = stat.Mean(v, nil)
	guess.Amplitude = (floats.Max(v) - floats.Min(v)) / 2

	fit, err := analysis.FitSine(t, v, guess)
	if err != nil {
		return fit, fmt.Errorf("sine fit: %w", err)
	}
	bode := analysis.BodePoint(fit.SineParams, plan.Gain/2)
	run.Meta.Sine = &fit.SineParams
	run.Meta.SineStdErr = fit.StdErr()
	run.Meta.Bode = &bode
	return fit, nil
}

// After returns the times and velocities of samples at or after from.
func (r *Run) After(from float64) (t, v []float64) {
	for i, s := range r.Samples {
		if s.Time >= from && i < len(r.Velocity) {
			t = append(t, s.Time)
			v = append(v, r.Velocity[i])
		}
	}
	return t, v
}

// Spectrum returns the dominant frequency of the velocity after from,
// resampled on a 1 ms grid.
func Spectrum(run *Run, from float64) (float64, error) {
	t, v := run.After(from)
	if len(v) < 2 {
		return 0, analysis.ErrTooFewSamples
	}
	return analysis.DominantFrequency(analysis.Resample(t, v, 1), 1)
}

// Analyze runs the analysis that matches the run kind.
func Analyze(run *Run, cfg config.AnalysisConfig) error {
	switch run.Meta.Kind {
	case storage.KindStep:
		return AnalyzeStep(run, cfg)
	case storage.KindFrequency:
		_, err := AnalyzeFrequency(run, cfg)
		return err
	}
	return fmt.Errorf("%w: %q", ErrWrongKind, run.Meta.Kind)
}

// Motor returns the first-order motor model of a step run, preferring the
// least-squares fit over the closed-form statistics.
func Motor(run *Run) (tf.TransferFunction, error) {
	switch {
	case run.Meta.FirstOrder != nil:
		return tf.Motor(run.Meta.FirstOrder.TimeConstant, run.Meta.FirstOrder.Gain), nil
	case run.Meta.StepResponse != nil:
		return tf.Motor(run.Meta.StepResponse.TimeConstant, run.Meta.StepResponse.Gain), nil
	}
	return tf.TransferFunction{}, fmt.Errorf("%w: %s has no motor model", ErrWrongKind, run.Meta.ID)
}

// ConfiguredMotor returns the motor model from the configuration.
func ConfiguredMotor(cfg config.MotorConfig) tf.TransferFunction {
	return tf.Motor(cfg.TimeConstant, cfg.FinalVelocity)
}

// BodePoints collects the Bode points of frequency runs.
func BodePoints(runs []*Run) []analysis.FrequencyPoint {
	var pts []analysis.FrequencyPoint
	for _, r := range runs {
		if r.Meta.Bode != nil {
			pts = append(pts, *r.Meta.Bode)
		}
	}
	return pts
}
