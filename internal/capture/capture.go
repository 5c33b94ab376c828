// Package capture drives the motor through open-loop sequences over a link
// session and records the encoder telemetry.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/telemetry"
)

// MaxTimeouts is the number of consecutive read timeouts a capture rides
// out before it fails.
const MaxTimeouts = 3

var (
	// ErrInvalidPlan is returned for plans with non-positive durations.
	ErrInvalidPlan = errors.New("capture: invalid plan")
)

// Link is the part of a link.Session used by captures.
type Link interface {
	EnableReports(side telemetry.Side) error
	DisableReports(side telemetry.Side) error
	SetPower(side telemetry.Side, power int) error
	ReadFrame(ctx context.Context) (telemetry.Frame, error)
}

// Observer receives samples as they are captured.
type Observer interface {
	OnSample(s telemetry.Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s telemetry.Sample)

func (f ObserverFunc) OnSample(s telemetry.Sample) { f(s) }

// Result is the outcome of one capture.
type Result struct {
	Samples []telemetry.Sample
	// Origin is the firmware time of the first frame; sample times are
	// relative to it.
	Origin int64
	// Skipped counts frames missing the time or encoder field.
	Skipped int
}

// Error carries the samples recorded before a capture failed.
type Error struct {
	Partial *Result
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture stopped after %d samples: %v", len(e.Partial.Samples), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// recorder accumulates samples and fans them out to an observer.
type recorder struct {
	side     telemetry.Side
	observer Observer
	result   *Result
	started  bool
	timeouts int
}

func newRecorder(side telemetry.Side, obs Observer) *recorder {
	return &recorder{side: side, observer: obs, result: &Result{}}
}

// frame extracts time and position. ok is false for the first frame, which
// only fixes the origin, and for frames missing either field.
func (r *recorder) frame(f telemetry.Frame) (t int64, pos int64, ok bool) {
	t, hasT := f.Time()
	pos, hasPos := f.Int(r.side.Key())
	if !r.started {
		if hasT {
			r.result.Origin = t
			r.started = true
		}
		return 0, 0, false
	}
	if !hasT || !hasPos {
		r.result.Skipped++
		return 0, 0, false
	}
	return t, pos, true
}

// read returns the next frame, retrying up to MaxTimeouts consecutive read
// timeouts.
func (r *recorder) read(ctx context.Context, l Link) (telemetry.Frame, error) {
	for {
		frame, err := l.ReadFrame(ctx)
		if errors.Is(err, link.ErrTimeout) && r.timeouts < MaxTimeouts {
			r.timeouts++
			continue
		}
		if err == nil {
			r.timeouts = 0
		}
		return frame, err
	}
}

func (r *recorder) record(s telemetry.Sample) {
	r.result.Samples = append(r.result.Samples, s)
	if r.observer != nil {
		r.observer.OnSample(s)
	}
}

func (r *recorder) fail(err error) error {
	return &Error{Partial: r.result, Err: err}
}
