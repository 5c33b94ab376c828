package link

import (
	"strconv"
	"strings"

	"github.com/san-kum/motorlab/internal/telemetry"
)

// Command is one line understood by the firmware system-test loop.
type Command []string

func (c Command) String() string {
	return strings.Join(c, " ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// TimeReport toggles the "T:" field.
func TimeReport(on bool) Command {
	return Command{"time", "report", onOff(on)}
}

// MotorReport toggles the encoder field of a motor.
func MotorReport(side telemetry.Side, on bool) Command {
	return Command{"motor", string(side), "report", onOff(on)}
}

// MotorSet sets the output power of a motor.
func MotorSet(side telemetry.Side, power int) Command {
	return Command{"motor", string(side), "set", strconv.Itoa(power)}
}

// DistanceReport toggles a distance sensor report ("left", "right", "front").
func DistanceReport(sensor string, on bool) Command {
	return Command{"distance", sensor, "report", onOff(on)}
}
