package config

import (
	"sort"

	"github.com/san-kum/motorlab/internal/telemetry"
)

func preset(mod func(c *Config)) *Config {
	c := DefaultConfig()
	mod(c)
	return c
}

// Presets are complete configurations keyed by experiment and name.
var Presets = map[string]map[string]*Config{
	"step": {
		"default": DefaultConfig(),
		"short": preset(func(c *Config) {
			c.Step.Before, c.Step.Step, c.Step.After = 500, 1000, 1000
		}),
		"half-power": preset(func(c *Config) {
			c.Step.Power = 5000
		}),
		"reverse": preset(func(c *Config) {
			c.Step.Power = -10000
		}),
		"right": preset(func(c *Config) {
			c.Step.Side = telemetry.Right
		}),
	},
	"frequency": {
		"default": DefaultConfig(),
		"slow": preset(func(c *Config) {
			c.Frequency.Frequency = 0.0005
			c.Frequency.RunTime = 10000
		}),
		"fast": preset(func(c *Config) {
			c.Frequency.Frequency = 0.02
			c.Analysis.SineGuess.Frequency = 0.02
			c.Analysis.SineGuess.Amplitude = 0.5
		}),
	},
	"sweep": {
		"bode": preset(func(c *Config) {
			c.Sweep.Frequencies = []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.032}
		}),
		"quick": preset(func(c *Config) {
			c.Sweep.Frequencies = []float64{0.002, 0.01}
			c.Frequency.RunTime = 3000
		}),
	},
	"tune": {
		"pi": DefaultConfig(),
		"pid": preset(func(c *Config) {
			c.Tune.Grid.D = []float64{0, 1000, 5000, 20000}
		}),
		"mouse-2019": preset(func(c *Config) {
			c.Mechanics.Preset = "mouse-2019"
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(kind, name string) *Config {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	cfg, ok := kindPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(kind string) []string {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(kindPresets))
	for name := range kindPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds lists the experiments that have presets.
func Kinds() []string {
	kinds := make([]string, 0, len(Presets))
	for kind := range Presets {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
