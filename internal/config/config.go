// Package config loads the YAML settings shared by the motorlab commands.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/motorlab/internal/analysis"
	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/geometry"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/mech"
	"github.com/san-kum/motorlab/internal/tune"
)

const (
	DefaultDataDir  = "./runs"
	DefaultLogLevel = "info"
	// DefaultFitFrom drops the start-up transient of frequency captures.
	DefaultFitFrom = 1000.0
	DefaultSmooth  = 9
	// Motor model measured on the 2020 mouse.
	DefaultTimeConstant  = 44.8
	DefaultFinalVelocity = 0.000825
)

type Config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Serial       SerialConfig          `yaml:"serial"`
	Step         capture.StepPlan      `yaml:"step"`
	Frequency    capture.FrequencyPlan `yaml:"frequency"`
	Sweep        SweepConfig           `yaml:"sweep"`
	Analysis     AnalysisConfig        `yaml:"analysis"`
	Motor        MotorConfig           `yaml:"motor"`
	Tune         TuneConfig            `yaml:"tune"`
	Mechanics    MechanicsConfig       `yaml:"mechanics"`
	Requirements RequirementsConfig    `yaml:"requirements"`
}

type SerialConfig struct {
	Port    string        `yaml:"port"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`
}

// Link returns the link configuration.
func (s SerialConfig) Link() link.Config {
	return link.Config{Port: s.Port, BaudRate: s.Baud, ReadTimeout: s.Timeout}
}

type SweepConfig struct {
	// Frequencies in cycles/ms.
	Frequencies []float64 `yaml:"frequencies"`
}

type AnalysisConfig struct {
	// Smooth is the moving average width applied to velocities.
	Smooth int `yaml:"smooth"`
	// Tail is the fraction of the step phase averaged for the final velocity.
	Tail float64 `yaml:"tail"`
	// FitFrom drops frequency samples before this time (ms).
	FitFrom   float64             `yaml:"fit_from"`
	SineGuess analysis.SineParams `yaml:"sine_guess"`
}

// MotorConfig is the first-order motor model used for tuning when no
// capture is given.
type MotorConfig struct {
	TimeConstant  float64 `yaml:"time_constant"`
	FinalVelocity float64 `yaml:"final_velocity"`
}

type TuneConfig struct {
	Options  tune.Options         `yaml:"options"`
	Grid     tune.Grid            `yaml:"grid"`
	Discrete tune.DiscreteOptions `yaml:"discrete"`
}

type MechanicsConfig struct {
	Preset string `yaml:"preset"`
	// Custom overrides the preset when set.
	Custom *mech.Mechanics `yaml:"custom,omitempty"`
}

// Resolve returns the configured mechanics.
func (m MechanicsConfig) Resolve() (mech.Mechanics, error) {
	if m.Custom != nil {
		return *m.Custom, nil
	}
	return mech.Preset(m.Preset)
}

// RequirementsConfig takes quantities with units, e.g. "90mm", "87g",
// "0.4m/s".
type RequirementsConfig struct {
	Radius      string `yaml:"radius"`
	Offset      string `yaml:"offset"`
	Wheelbase   string `yaml:"wheelbase"`
	WheelRadius string `yaml:"wheel_radius"`
	Mass        string `yaml:"mass"`
	Speed       string `yaml:"speed"`
	Samples     int    `yaml:"samples"`
}

// Requirements holds parsed RequirementsConfig values.
type Requirements struct {
	Radius  physic.Distance
	Offset  physic.Distance
	Chassis geometry.Chassis
	Speed   physic.Speed
	Samples int
}

// Parse converts the unit strings.
func (r RequirementsConfig) Parse() (Requirements, error) {
	var out Requirements
	dists := []struct {
		name string
		in   string
		out  *physic.Distance
	}{
		{"radius", r.Radius, &out.Radius},
		{"offset", r.Offset, &out.Offset},
		{"wheelbase", r.Wheelbase, &out.Chassis.Wheelbase},
		{"wheel_radius", r.WheelRadius, &out.Chassis.WheelRadius},
	}
	for _, d := range dists {
		if err := d.out.Set(d.in); err != nil {
			return out, fmt.Errorf("requirements %s %q: %w", d.name, d.in, err)
		}
	}
	if err := out.Chassis.Mass.Set(r.Mass); err != nil {
		return out, fmt.Errorf("requirements mass %q: %w", r.Mass, err)
	}
	if err := out.Speed.Set(r.Speed); err != nil {
		return out, fmt.Errorf("requirements speed %q: %w", r.Speed, err)
	}
	out.Samples = r.Samples
	if out.Samples <= 0 {
		out.Samples = geometry.DefaultSamples
	}
	return out, nil
}

func DefaultConfig() *Config {
	serial := link.DefaultConfig()
	return &Config{
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Serial: SerialConfig{
			Port:    serial.Port,
			Baud:    serial.BaudRate,
			Timeout: serial.ReadTimeout,
		},
		Step:      capture.DefaultStepPlan(),
		Frequency: capture.DefaultFrequencyPlan(),
		Sweep: SweepConfig{
			Frequencies: []float64{0.001, 0.002, 0.005, 0.01, 0.02},
		},
		Analysis: AnalysisConfig{
			Smooth:    DefaultSmooth,
			Tail:      analysis.DefaultTail,
			FitFrom:   DefaultFitFrom,
			SineGuess: analysis.DefaultSineGuess,
		},
		Motor: MotorConfig{
			TimeConstant:  DefaultTimeConstant,
			FinalVelocity: DefaultFinalVelocity,
		},
		Tune: TuneConfig{
			Options: tune.DefaultOptions(),
			Grid: tune.Grid{
				P: tune.Logspace(100, 10000, 9),
				I: tune.Logspace(1, 100, 5),
				D: []float64{0},
			},
			Discrete: tune.DefaultDiscreteOptions(),
		},
		Mechanics: MechanicsConfig{Preset: mech.DefaultPreset},
		Requirements: RequirementsConfig{
			Radius:      "90mm",
			Offset:      "12mm",
			Wheelbase:   "72mm",
			WheelRadius: "16mm",
			Mass:        "87g",
			Speed:       "0.4m/s",
			Samples:     geometry.DefaultSamples,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal: %v", err))
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("config: unmarshal: %v", err))
	}
	return out
}

// Validate checks the capture plans, the motor model and the mechanics.
func (c *Config) Validate() error {
	if err := c.Step.Validate(); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if err := c.Frequency.Validate(); err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	if !(c.Motor.TimeConstant > 0) {
		return fmt.Errorf("motor: time constant must be positive, got %g", c.Motor.TimeConstant)
	}
	if _, err := c.Mechanics.Resolve(); err != nil {
		return fmt.Errorf("mechanics: %w", err)
	}
	if _, err := c.Requirements.Parse(); err != nil {
		return err
	}
	return nil
}
