package telemetry

import "strings"

// Side selects a motor.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// ParseSide accepts "left"/"right" and the firmware keys "LM"/"RM".
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(s) {
	case "left", "l", "lm":
		return Left, true
	case "right", "r", "rm":
		return Right, true
	}
	return "", false
}

// Key returns the report field for the motor's encoder.
func (s Side) Key() string {
	if s == Right {
		return KeyRightMotor
	}
	return KeyLeftMotor
}

// Sample is one captured point of an open-loop experiment.
type Sample struct {
	// Time in milliseconds, relative to the start of the capture.
	Time float64
	// Position is the encoder count in ticks.
	Position float64
	// Step is the phase of the open-loop sequence when the sample was taken.
	Step int
	// Power is the last commanded motor power; HasPower is false before the
	// first command.
	Power    float64
	HasPower bool
}

// Columns splits samples into parallel slices.
func Columns(samples []Sample) (times, positions, powers []float64) {
	times = make([]float64, len(samples))
	positions = make([]float64, len(samples))
	powers = make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
		positions[i] = s.Position
		powers[i] = s.Power
	}
	return times, positions, powers
}
