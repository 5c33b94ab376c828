package dynamo

import "math"

// State is the integrated vector. The motor models keep velocity in x[0]
// and position in x[1]; transfer function realizations keep the
// controllable canonical states.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is the input vector; the motor models take the commanded power.
type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Output is implemented by systems whose measured output differs from x[0].
type Output interface {
	Output(x State, u Control, t float64) float64
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Resetter is implemented by controllers that carry integral or derivative
// memory between runs.
type Resetter interface {
	Reset()
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.1,
		Duration:      500.0,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Controls   []Control
	Outputs    []float64
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}
