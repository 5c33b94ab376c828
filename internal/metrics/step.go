// Package metrics scores simulated responses. Every metric implements
// dynamo.Metric and observes the measured output as x[0], so the same types
// serve the simulator and recorded traces.
package metrics

import (
	"math"

	"github.com/san-kum/motorlab/internal/dynamo"
)

// SettlingBand is the relative error band of the settling time.
const SettlingBand = 0.02

// RiseTime is the time from 10% to 90% of the target. It is +Inf until the
// output reaches 90%.
type RiseTime struct {
	target   float64
	t10, t90 float64
	seen10   bool
	seen90   bool
}

func NewRiseTime(target float64) *RiseTime {
	return &RiseTime{target: target}
}

func (r *RiseTime) Name() string { return "rise_time" }

func (r *RiseTime) Observe(x dynamo.State, u dynamo.Control, t float64) {
	frac := x[0] / r.target
	if !r.seen10 && frac >= 0.1 {
		r.t10, r.seen10 = t, true
	}
	if !r.seen90 && frac >= 0.9 {
		r.t90, r.seen90 = t, true
	}
}

func (r *RiseTime) Value() float64 {
	if !r.seen90 {
		return math.Inf(1)
	}
	return r.t90 - r.t10
}

func (r *RiseTime) Reset() {
	r.seen10, r.seen90 = false, false
	r.t10, r.t90 = 0, 0
}

// Overshoot is the peak excursion beyond the target in percent.
type Overshoot struct {
	target float64
	peak   float64
}

func NewOvershoot(target float64) *Overshoot {
	return &Overshoot{target: target}
}

func (o *Overshoot) Name() string { return "overshoot" }

func (o *Overshoot) Observe(x dynamo.State, u dynamo.Control, t float64) {
	o.peak = math.Max(o.peak, x[0]/o.target)
}

func (o *Overshoot) Value() float64 {
	return math.Max(0, (o.peak-1)*100)
}

func (o *Overshoot) Reset() { o.peak = 0 }

// SettlingTime is the time after which the output stays within
// SettlingBand of the target. It is +Inf if the last sample is outside.
type SettlingTime struct {
	target  float64
	settled float64
	inside  bool
}

func NewSettlingTime(target float64) *SettlingTime {
	return &SettlingTime{target: target}
}

func (s *SettlingTime) Name() string { return "settling_time" }

func (s *SettlingTime) Observe(x dynamo.State, u dynamo.Control, t float64) {
	in := math.Abs(x[0]-s.target) <= SettlingBand*math.Abs(s.target)
	if in && !s.inside {
		s.settled = t
	}
	s.inside = in
}

func (s *SettlingTime) Value() float64 {
	if !s.inside {
		return math.Inf(1)
	}
	return s.settled
}

func (s *SettlingTime) Reset() {
	s.settled, s.inside = 0, false
}

// SteadyStateError is the absolute error at the last sample.
type SteadyStateError struct {
	target float64
	last   float64
}

func NewSteadyStateError(target float64) *SteadyStateError {
	return &SteadyStateError{target: target}
}

func (s *SteadyStateError) Name() string { return "steady_state_error" }

func (s *SteadyStateError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.last = x[0]
}

func (s *SteadyStateError) Value() float64 { return math.Abs(s.target - s.last) }

func (s *SteadyStateError) Reset() { s.last = 0 }

// ITAE is the integral of time-weighted absolute error, normalized by the
// target so that gains for different setpoints compare.
type ITAE struct {
	target float64
	sum    float64
	prevT  float64
	seen   bool
}

func NewITAE(target float64) *ITAE {
	return &ITAE{target: target}
}

func (i *ITAE) Name() string { return "itae" }

func (i *ITAE) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if i.seen {
		i.sum += t * math.Abs((i.target-x[0])/i.target) * (t - i.prevT)
	}
	i.prevT, i.seen = t, true
}

func (i *ITAE) Value() float64 { return i.sum }

func (i *ITAE) Reset() {
	i.sum, i.prevT, i.seen = 0, 0, false
}

// StepMetrics summarizes a step response.
type StepMetrics struct {
	RiseTime         float64 `json:"rise_time"`
	Overshoot        float64 `json:"overshoot"`
	SettlingTime     float64 `json:"settling_time"`
	SteadyStateError float64 `json:"steady_state_error"`
	ITAE             float64 `json:"itae"`
}

// StepSet returns fresh step metrics for a target.
func StepSet(target float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewRiseTime(target),
		NewOvershoot(target),
		NewSettlingTime(target),
		NewSteadyStateError(target),
		NewITAE(target),
	}
}

// FromMap reads step metrics from a simulator result.
func FromMap(m map[string]float64) StepMetrics {
	return StepMetrics{
		RiseTime:         m["rise_time"],
		Overshoot:        m["overshoot"],
		SettlingTime:     m["settling_time"],
		SteadyStateError: m["steady_state_error"],
		ITAE:             m["itae"],
	}
}

// Step scores a recorded trace against target.
func Step(times, values []float64, target float64) StepMetrics {
	set := StepSet(target)
	for i, t := range times {
		for _, m := range set {
			m.Observe(dynamo.State{values[i]}, nil, t)
		}
	}
	out := make(map[string]float64, len(set))
	for _, m := range set {
		out[m.Name()] = m.Value()
	}
	return FromMap(out)
}
