package control

import (
	"math"

	"github.com/san-kum/motorlab/internal/dynamo"
)

type PID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target float64
	// Limit saturates the output to [-Limit, Limit]; zero disables it.
	Limit float64

	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

func (p *PID) Compute(x dynamo.State, t float64) dynamo.Control {
	if len(x) < 1 {
		return dynamo.Control{0}
	}

	err := p.Target - x[0]

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		return dynamo.Control{p.saturate(p.Kp * err)}
	}

	dt := t - p.prevT
	if dt <= 0 {
		return dynamo.Control{p.saturate(p.Kp*err + p.Ki*p.integral)}
	}

	integral := p.integral + err*dt
	derivative := (err - p.prevErr) / dt

	raw := p.Kp*err + p.Ki*integral + p.Kd*derivative
	u := p.saturate(raw)

	// Stop integrating while saturated in the direction of the error.
	if u == raw || math.Signbit(err) != math.Signbit(raw) {
		p.integral = integral
	}

	p.prevErr = err
	p.prevT = t

	return dynamo.Control{u}
}

func (p *PID) saturate(u float64) float64 {
	if p.Limit <= 0 {
		return u
	}
	return math.Max(-p.Limit, math.Min(p.Limit, u))
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevT = 0
	p.first = true
}
