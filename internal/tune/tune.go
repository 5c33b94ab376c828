// Package tune picks PID gains for a motor model by simulating closed-loop
// step responses.
//
// The motor model is the first-order transfer function fitted from a step
// capture, with time in milliseconds and velocity in ticks/ms per unit of
// power. The loop is the unity feedback of PID·motor, and candidate gains
// are scored on the ITAE of the unit step response plus a penalty on
// overshoot.
package tune

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/motorlab/internal/control"
	"github.com/san-kum/motorlab/internal/dynamo"
	"github.com/san-kum/motorlab/internal/integrators"
	"github.com/san-kum/motorlab/internal/metrics"
	"github.com/san-kum/motorlab/internal/tf"
)

// Gains of a parallel PID controller.
type Gains struct {
	P float64 `json:"p" yaml:"p"`
	I float64 `json:"i" yaml:"i"`
	D float64 `json:"d" yaml:"d"`
}

func (g Gains) String() string {
	return fmt.Sprintf("p=%g i=%g d=%g", g.P, g.I, g.D)
}

// TransferFunction returns p + i/s + d s.
func (g Gains) TransferFunction() tf.TransferFunction {
	return tf.PID(g.P, g.I, g.D)
}

type Options struct {
	// Duration and Dt of the simulated step, in ms.
	Duration float64 `json:"duration_ms" yaml:"duration_ms"`
	Dt       float64 `json:"dt_ms" yaml:"dt_ms"`
	// OvershootPenalty is added to the cost per percent of overshoot.
	OvershootPenalty float64 `json:"overshoot_penalty" yaml:"overshoot_penalty"`
	// Workers bounds concurrent simulations in Search; zero uses every CPU.
	Workers int `json:"workers" yaml:"workers"`
	// Integrator names the ODE integrator, rk4 when empty.
	Integrator string `json:"integrator" yaml:"integrator"`
}

func DefaultOptions() Options {
	return Options{
		Duration:         1000,
		Dt:               0.5,
		OvershootPenalty: 50,
		Integrator:       "rk4",
	}
}

// simulation realizes g driven by input with the named integrator.
func simulation(g tf.TransferFunction, integrator string, input dynamo.Controller) (*dynamo.Simulator, dynamo.State, error) {
	if integrator == "" {
		integrator = "rk4"
	}
	integ, err := integrators.Get(integrator)
	if err != nil {
		return nil, nil, err
	}
	return tf.NewSimulationWith(g, integ, input)
}

// Evaluation is the scored step response of one set of gains.
type Evaluation struct {
	Gains   Gains               `json:"gains"`
	Stable  bool                `json:"stable"`
	Metrics metrics.StepMetrics `json:"metrics"`
	Cost    float64             `json:"cost"`
	// Effort and PeakPower describe the controller output.
	Effort    float64     `json:"effort"`
	PeakPower float64     `json:"peak_power"`
	Response  tf.Response `json:"-"`
	Power     []float64   `json:"-"`
}

// ClosedLoop returns the unity feedback of PID·motor.
func ClosedLoop(motor tf.TransferFunction, g Gains) tf.TransferFunction {
	return tf.Feedback(tf.Series(g.TransferFunction(), motor))
}

func (o Options) cost(m metrics.StepMetrics) float64 {
	if math.IsInf(m.RiseTime, 1) {
		return math.Inf(1)
	}
	return m.ITAE + o.OvershootPenalty*m.Overshoot
}

// Evaluate simulates the closed-loop unit step response for g. Unstable
// loops are reported with Stable false and an infinite cost, not an error.
func Evaluate(ctx context.Context, motor tf.TransferFunction, g Gains, opts Options) (Evaluation, error) {
	ev := Evaluation{Gains: g, Cost: math.Inf(1)}

	closed := ClosedLoop(motor, g)
	if ev.Stable = closed.Stable(); !ev.Stable {
		return ev, nil
	}

	sim, x0, err := simulation(closed, opts.Integrator, control.NewConstant(1))
	if err != nil {
		return ev, err
	}
	for _, m := range metrics.StepSet(1) {
		sim.AddMetric(m)
	}

	res, err := sim.Run(ctx, x0, dynamo.Config{Dt: opts.Dt, Duration: opts.Duration, ValidateState: true})
	if err != nil {
		return ev, err
	}
	if len(res.Errors) > 0 {
		return ev, res.Errors[0]
	}

	ev.Metrics = metrics.FromMap(res.Metrics)
	ev.Cost = opts.cost(ev.Metrics)
	ev.Response = tf.Response{Times: res.Times, Values: res.Outputs}
	ev.Power = controllerOutput(ctx, g, ev.Response)
	for _, p := range ev.Power {
		ev.Effort += math.Abs(p)
		ev.PeakPower = math.Max(ev.PeakPower, math.Abs(p))
	}
	if len(ev.Power) > 0 {
		ev.Effort /= float64(len(ev.Power))
	}
	return ev, nil
}

// controllerOutput replays the unit step error through the PID transfer
// function as the closed-loop output saw it.
func controllerOutput(ctx context.Context, g Gains, resp tf.Response) []float64 {
	pid := control.NewPID(g.P, g.I, g.D, 1)
	out := make([]float64, len(resp.Times))
	for i, t := range resp.Times {
		if ctx.Err() != nil {
			return out[:i]
		}
		out[i] = pid.Compute(dynamo.State{resp.Values[i]}, t)[0]
	}
	return out
}
