package control

import "github.com/san-kum/motorlab/internal/dynamo"

// Constant holds a fixed input, optionally switched on at a start time.
type Constant struct {
	Value float64
	Start float64
}

func NewConstant(value float64) *Constant {
	return &Constant{Value: value}
}

func (c *Constant) Compute(x dynamo.State, t float64) dynamo.Control {
	if t < c.Start {
		return dynamo.Control{0}
	}
	return dynamo.Control{c.Value}
}
