package tune

import (
	"context"

	"github.com/san-kum/motorlab/internal/control"
	"github.com/san-kum/motorlab/internal/dynamo"
	"github.com/san-kum/motorlab/internal/metrics"
	"github.com/san-kum/motorlab/internal/tf"
)

// DiscreteOptions describe the firmware velocity loop.
type DiscreteOptions struct {
	// Target velocity in ticks/ms.
	Target float64 `json:"target" yaml:"target"`
	// Duration and Period (the control loop interval) in ms.
	Duration float64 `json:"duration_ms" yaml:"duration_ms"`
	Period   float64 `json:"period_ms" yaml:"period_ms"`
	// MaxPower saturates the controller output.
	MaxPower float64 `json:"max_power" yaml:"max_power"`
	// Integrator names the ODE integrator for the motor, rk4 when empty.
	Integrator string `json:"integrator" yaml:"integrator"`
}

func DefaultDiscreteOptions() DiscreteOptions {
	return DiscreteOptions{
		Target:     4,
		Duration:   1000,
		Period:     1,
		MaxPower:   10000,
		Integrator: "rk4",
	}
}

// SimulateDiscrete runs the PID controller once per period against the
// motor model with the output held between updates and saturated at
// MaxPower, the way the firmware drives the motor.
func SimulateDiscrete(ctx context.Context, motor tf.TransferFunction, g Gains, opts DiscreteOptions) (Evaluation, error) {
	pid := control.NewPID(g.P, g.I, g.D, opts.Target)
	pid.Limit = opts.MaxPower

	sim, x0, err := simulation(motor, opts.Integrator, pid)
	if err != nil {
		return Evaluation{Gains: g}, err
	}
	effort, peak := metrics.NewControlEffort(), metrics.NewPeakControl()
	sim.AddMetric(effort)
	sim.AddMetric(peak)
	for _, m := range metrics.StepSet(opts.Target) {
		sim.AddMetric(m)
	}

	res, err := sim.Run(ctx, x0, dynamo.Config{Dt: opts.Period, Duration: opts.Duration, ValidateState: true})
	if err != nil {
		return Evaluation{Gains: g}, err
	}

	ev := Evaluation{
		Gains:     g,
		Stable:    len(res.Errors) == 0,
		Metrics:   metrics.FromMap(res.Metrics),
		Effort:    res.Metrics[effort.Name()],
		PeakPower: res.Metrics[peak.Name()],
		Response:  tf.Response{Times: res.Times, Values: res.Outputs},
	}
	ev.Cost = DefaultOptions().cost(ev.Metrics)
	for _, u := range res.Controls {
		ev.Power = append(ev.Power, u[0])
	}
	return ev, nil
}
