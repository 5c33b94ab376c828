package metrics

import (
	"math"

	"github.com/san-kum/motorlab/internal/dynamo"
)

// ControlEffort is the mean absolute command.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, val := range u {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakControl is the largest absolute command, used to spot saturation.
type PeakControl struct {
	peak float64
}

func NewPeakControl() *PeakControl { return &PeakControl{} }

func (p *PeakControl) Name() string { return "peak_control" }

func (p *PeakControl) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, val := range u {
		p.peak = math.Max(p.peak, math.Abs(val))
	}
}

func (p *PeakControl) Value() float64 { return p.peak }

func (p *PeakControl) Reset() { p.peak = 0 }
