// Package mech holds the mechanical constants of the mouse and converts
// between encoder ticks and distances.
package mech

import (
	"fmt"
	"math"
	"sort"

	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/motorlab/internal/geometry"
)

// Mechanics lengths are in millimetres.
type Mechanics struct {
	WheelDiameter float64 `json:"wheel_diameter" yaml:"wheel_diameter"`
	GearboxRatio  float64 `json:"gearbox_ratio" yaml:"gearbox_ratio"`
	TicksPerRev   float64 `json:"ticks_per_rev" yaml:"ticks_per_rev"`
	Wheelbase     float64 `json:"wheelbase" yaml:"wheelbase"`
	Width         float64 `json:"width" yaml:"width"`
	Length        float64 `json:"length" yaml:"length"`
	FrontOffset   float64 `json:"front_offset" yaml:"front_offset"`
}

var Presets = map[string]Mechanics{
	"mouse-2019": {
		WheelDiameter: 32.0,
		GearboxRatio:  75.81,
		TicksPerRev:   12.0,
		Wheelbase:     74.0,
		Width:         64.0,
		Length:        90.0,
		FrontOffset:   48.0,
	},
	"mouse-2020": {
		WheelDiameter: 29.5,
		GearboxRatio:  30.0,
		TicksPerRev:   12.0,
		Wheelbase:     80.0,
		Width:         64.0,
		Length:        57.5,
		FrontOffset:   40.0,
	},
	"mouse-2020-mk2": {
		WheelDiameter: 32.0,
		GearboxRatio:  29.86,
		TicksPerRev:   12.0,
		Wheelbase:     85.0,
		Width:         64.0,
		Length:        57.5,
		FrontOffset:   40.0,
	},
}

const DefaultPreset = "mouse-2020"

func Default() Mechanics {
	return Presets[DefaultPreset]
}

// Preset looks up a named mechanical preset.
func Preset(name string) (Mechanics, error) {
	m, ok := Presets[name]
	if !ok {
		return Mechanics{}, fmt.Errorf("unknown mechanics preset: %s (available: %v)", name, PresetNames())
	}
	return m, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m Mechanics) TicksPerMM() float64 {
	return m.TicksPerRev * m.GearboxRatio / (m.WheelDiameter * math.Pi)
}

func (m Mechanics) TicksToMM(ticks float64) float64 {
	return ticks / m.TicksPerMM()
}

func (m Mechanics) MMToTicks(mm float64) float64 {
	return mm * m.TicksPerMM()
}

// MMPerRad is the wheel travel per radian of chassis rotation.
func (m Mechanics) MMPerRad() float64 {
	return m.Wheelbase / 2
}

func (m Mechanics) TicksPerRad() float64 {
	return m.MMToTicks(m.MMPerRad())
}

func (m Mechanics) TicksToRads(ticks float64) float64 {
	return ticks / m.TicksPerRad()
}

func (m Mechanics) RadsToTicks(rads float64) float64 {
	return rads * m.TicksPerRad()
}

// Speed converts an encoder rate in ticks/ms to a linear speed.
func (m Mechanics) Speed(ticksPerMS float64) physic.Speed {
	mmPerS := m.TicksToMM(ticksPerMS) * 1000
	return physic.Speed(mmPerS * float64(physic.MilliMetre))
}

// Chassis returns the wheel geometry used for torque requirements.
func (m Mechanics) Chassis(mass physic.Mass) geometry.Chassis {
	return geometry.Chassis{
		Wheelbase:   physic.Distance(m.Wheelbase * float64(physic.MilliMetre)),
		WheelRadius: physic.Distance(m.WheelDiameter / 2 * float64(physic.MilliMetre)),
		Mass:        mass,
	}
}
