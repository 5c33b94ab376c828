package dynamo

import (
	"context"
	"fmt"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	metrics    []Metric
}

func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
	}
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

// Run integrates the system from x0 with a fixed step. The controller and
// metrics observe the measured output as a one-element state; systems that
// do not implement Output are measured by x[0].
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: state %d, system %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		States:   make([]State, 0, steps+1),
		Controls: make([]Control, 0, steps+1),
		Outputs:  make([]float64, 0, steps+1),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}
	if r, ok := s.controller.(Resetter); ok {
		r.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		y := s.output(x, nil, t)
		u := s.controller.Compute(State{y}, t)

		for _, m := range s.metrics {
			m.Observe(State{y}, u, t)
		}

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Outputs = append(result.Outputs, s.output(x, u, t))
		result.Times = append(result.Times, t)

		if i == steps {
			break
		}

		newX := s.integrator.Step(s.dyn, x, u, t, dt)
		if cfg.ValidateState && !newX.IsValid() {
			err := &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ErrInvalidState}
			result.Errors = append(result.Errors, err)
			break
		}

		x = newX
		t = float64(i+1) * dt
		result.StepsTaken++
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) output(x State, u Control, t float64) float64 {
	if o, ok := s.dyn.(Output); ok {
		return o.Output(x, u, t)
	}
	if len(x) == 0 {
		return 0
	}
	return x[0]
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	return nil
}
