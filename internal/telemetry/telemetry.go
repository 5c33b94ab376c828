// Package telemetry parses the line-oriented reports emitted by the mouse
// firmware in system-test mode.
//
// Each report is one line of comma separated KEY:VALUE fields, for example
//
//	T:10432,LM:-118,RM:4,
//
// where T is the firmware clock in milliseconds and LM/RM are the left and
// right encoder counts.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field keys reported by the firmware.
const (
	KeyTime          = "T"
	KeyLeftMotor     = "LM"
	KeyRightMotor    = "RM"
	KeyLeftDistance  = "LD"
	KeyRightDistance = "RD"
	KeyFrontDistance = "FD"
)

var (
	// ErrNotTelemetry is returned for lines that are not reports, such as
	// command echoes or "Unknown command" replies.
	ErrNotTelemetry = errors.New("telemetry: not a telemetry line")
)

// FieldError reports a field whose value could not be parsed.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("telemetry: parsing %s from %q: %v", e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Frame is one parsed report line.
type Frame struct {
	Ints map[string]int64
	Text map[string]string
}

// Int returns the integer field for key, if present.
func (f Frame) Int(key string) (int64, bool) {
	v, ok := f.Ints[key]
	return v, ok
}

// Time returns the firmware time in milliseconds.
func (f Frame) Time() (int64, bool) {
	return f.Int(KeyTime)
}

// numeric reports whether a key carries an integer value.
func numeric(key string) bool {
	switch key {
	case KeyTime, KeyLeftMotor, KeyRightMotor:
		return true
	}
	return false
}

// IsTelemetry reports whether the line looks like a report.
func IsTelemetry(line string) bool {
	return strings.Contains(line, ",") && strings.Contains(line, ":")
}

// ParseLine parses one report line. Fields that fail to parse are skipped and
// reported as joined *FieldError values alongside the fields that did parse.
func ParseLine(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	if !IsTelemetry(line) {
		return Frame{}, ErrNotTelemetry
	}

	frame := Frame{
		Ints: make(map[string]int64, 3),
		Text: make(map[string]string),
	}

	var errs []error
	for _, word := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(word, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if !numeric(key) {
			frame.Text[key] = value
			continue
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			errs = append(errs, &FieldError{Key: key, Value: value, Err: err})
			continue
		}
		frame.Ints[key] = n
	}

	return frame, errors.Join(errs...)
}
