// Package automation runs scripted capture sessions: a YAML scenario lists
// the captures to run in order against one link.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/config"
	"github.com/san-kum/motorlab/internal/experiment"
	"github.com/san-kum/motorlab/internal/storage"
	"github.com/san-kum/motorlab/internal/telemetry"
)

var ErrUnknownKind = errors.New("automation: unknown step kind")

// Scenario defines a scripted capture sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one capture. Zero fields keep the base configuration.
type ScenarioStep struct {
	Kind   string `yaml:"kind"`
	Preset string `yaml:"preset"`
	Side   string `yaml:"side"`

	// step captures; Powers repeats the capture once per power
	Power  int   `yaml:"power"`
	Powers []int `yaml:"powers"`
	Before int64 `yaml:"before_ms"`
	Step   int64 `yaml:"step_ms"`
	After  int64 `yaml:"after_ms"`

	// frequency and sweep captures
	Frequency   float64   `yaml:"frequency"`
	Frequencies []float64 `yaml:"frequencies"`
	RunTime     int64     `yaml:"run_ms"`
	Gain        float64   `yaml:"gain"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	for i, step := range s.Steps {
		switch step.Kind {
		case storage.KindStep, storage.KindFrequency, "sweep":
		default:
			return fmt.Errorf("step %d: %w: %q", i+1, ErrUnknownKind, step.Kind)
		}
		if step.Side != "" {
			if _, ok := telemetry.ParseSide(step.Side); !ok {
				return fmt.Errorf("step %d: unknown side %q", i+1, step.Side)
			}
		}
	}
	return nil
}

// configure returns the configuration of one scenario step.
func (st ScenarioStep) configure(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	if st.Preset != "" {
		p := config.GetPreset(st.Kind, st.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", st.Preset, config.ListPresets(st.Kind))
		}
		cfg.Step, cfg.Frequency, cfg.Sweep = p.Step, p.Frequency, p.Sweep
	}
	if st.Side != "" {
		side, _ := telemetry.ParseSide(st.Side)
		cfg.Step.Side, cfg.Frequency.Side = side, side
	}
	if st.Power != 0 {
		cfg.Step.Power = st.Power
	}
	if st.Before > 0 {
		cfg.Step.Before = st.Before
	}
	if st.Step > 0 {
		cfg.Step.Step = st.Step
	}
	if st.After > 0 {
		cfg.Step.After = st.After
	}
	if st.Frequency > 0 {
		cfg.Frequency.Frequency = st.Frequency
	}
	if len(st.Frequencies) > 0 {
		cfg.Sweep.Frequencies = st.Frequencies
	}
	if st.RunTime > 0 {
		cfg.Frequency.RunTime = st.RunTime
	}
	if st.Gain != 0 {
		cfg.Frequency.Gain = st.Gain
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Runner executes scenarios over one link.
type Runner struct {
	Base   *config.Config
	Link   capture.Link
	Store  *storage.Store
	Logger *log.Logger
}

// Run executes all steps in order and saves every run, including the
// partial run of a failed capture. It stops at the first failure.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) ([]*experiment.Run, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var runs []*experiment.Run

	for i, step := range scenario.Steps {
		logger.Info("scenario step", "n", i+1, "of", len(scenario.Steps), "kind", step.Kind)
		cfg, err := step.configure(r.Base)
		if err != nil {
			return runs, fmt.Errorf("step %d: %w", i+1, err)
		}

		var got []*experiment.Run
		switch step.Kind {
		case storage.KindStep:
			powers := step.Powers
			if len(powers) == 0 {
				powers = []int{cfg.Step.Power}
			}
			for _, p := range powers {
				cfg.Step.Power = p
				var run *experiment.Run
				run, err = experiment.New(cfg, r.Link, logger).Step(ctx, nil)
				got = append(got, run)
				if err != nil {
					break
				}
			}
		case storage.KindFrequency:
			var run *experiment.Run
			run, err = experiment.New(cfg, r.Link, logger).Frequency(ctx, nil)
			got = append(got, run)
		case "sweep":
			got, err = experiment.New(cfg, r.Link, logger).Sweep(ctx, nil)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownKind, step.Kind)
		}

		for _, run := range got {
			if run == nil || len(run.Samples) == 0 {
				continue
			}
			if _, serr := experiment.Save(r.Store, run); serr != nil {
				return runs, fmt.Errorf("step %d save: %w", i+1, serr)
			}
			runs = append(runs, run)
		}
		if err != nil {
			return runs, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return runs, nil
}

// GainPoint is the measured gain at one step power.
type GainPoint struct {
	Power        float64
	Gain         float64
	TimeConstant float64
}

// GainCurve collects the step statistics of runs by power, showing how far
// the motor departs from a single linear gain.
func GainCurve(runs []*experiment.Run) []GainPoint {
	var pts []GainPoint
	for _, run := range runs {
		if r := run.Meta.StepResponse; r != nil {
			pts = append(pts, GainPoint{Power: r.Power, Gain: r.Gain, TimeConstant: r.TimeConstant})
		}
	}
	return pts
}
