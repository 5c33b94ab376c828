package tf

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/motorlab/internal/control"
	"github.com/san-kum/motorlab/internal/dynamo"
	"github.com/san-kum/motorlab/internal/integrators"
)

// StateSpace is the single-input single-output realization
// dx/dt = A x + B u, y = C x + D u.
type StateSpace struct {
	A *mat.Dense
	B []float64
	C []float64
	D float64
}

// Realize returns the controllable canonical realization of a proper
// transfer function.
func Realize(g TransferFunction) (*StateSpace, error) {
	if !g.Proper() {
		return nil, fmt.Errorf("%w: %s", ErrImproper, g)
	}
	den := g.Den.trim()
	n := len(den) - 1
	lead := den[0]

	// a and b are the monic denominator and the numerator padded to n+1
	a := make([]float64, n+1)
	for i, c := range den {
		a[i] = c / lead
	}
	num := g.Num.trim()
	b := make([]float64, n+1)
	for i, c := range num {
		b[n+1-len(num)+i] = c / lead
	}

	ss := &StateSpace{B: make([]float64, n), C: make([]float64, n), D: b[0]}
	if n == 0 {
		return ss, nil
	}

	ss.A = mat.NewDense(n, n, nil)
	for i := 0; i < n-1; i++ {
		ss.A.Set(i, i+1, 1)
	}
	for j := 0; j < n; j++ {
		ss.A.Set(n-1, j, -a[n-j])
	}
	ss.B[n-1] = 1
	for j := 0; j < n; j++ {
		ss.C[j] = b[n-j] - a[n-j]*b[0]
	}
	return ss, nil
}

func (s *StateSpace) StateDim() int   { return len(s.B) }
func (s *StateSpace) ControlDim() int { return 1 }

func (s *StateSpace) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := len(s.B)
	dx := make(dynamo.State, n)
	if n == 0 {
		return dx
	}
	var in float64
	if len(u) > 0 {
		in = u[0]
	}
	var v mat.VecDense
	v.MulVec(s.A, mat.NewVecDense(n, []float64(x)))
	for i := range dx {
		dx[i] = v.AtVec(i) + s.B[i]*in
	}
	return dx
}

// Output implements dynamo.Output.
func (s *StateSpace) Output(x dynamo.State, u dynamo.Control, t float64) float64 {
	var y float64
	for i, c := range s.C {
		y += c * x[i]
	}
	if len(u) > 0 {
		y += s.D * u[0]
	}
	return y
}

// Response is a simulated time response.
type Response struct {
	Times  []float64
	Values []float64
}

// Final returns the last value.
func (r Response) Final() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[len(r.Values)-1]
}

// NewSimulation returns an RK4 simulator of g driven by input, with the
// zero initial state. The simulator's outputs are y = C x + D u.
func NewSimulation(g TransferFunction, input dynamo.Controller) (*dynamo.Simulator, dynamo.State, error) {
	return NewSimulationWith(g, integrators.NewRK4(), input)
}

// NewSimulationWith is NewSimulation with a chosen integrator.
func NewSimulationWith(g TransferFunction, integ dynamo.Integrator, input dynamo.Controller) (*dynamo.Simulator, dynamo.State, error) {
	ss, err := Realize(g)
	if err != nil {
		return nil, nil, err
	}
	return dynamo.New(ss, integ, input), make(dynamo.State, ss.StateDim()), nil
}

// StepResponse simulates g driven by a unit step at t=0 for duration ms
// with the RK4 integrator.
func StepResponse(ctx context.Context, g TransferFunction, duration, dt float64) (Response, error) {
	sim, x0, err := NewSimulation(g, control.NewConstant(1))
	if err != nil {
		return Response{}, err
	}

	res, err := sim.Run(ctx, x0, dynamo.Config{
		Dt:            dt,
		Duration:      duration,
		ValidateState: true,
	})
	if err != nil {
		return Response{}, err
	}
	if len(res.Errors) > 0 {
		return Response{}, res.Errors[0]
	}
	return Response{Times: res.Times, Values: res.Outputs}, nil
}
