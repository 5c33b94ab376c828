// Package dynamo provides the simulation primitives shared by the motor
// model, the simulated device and the PID tuner.
//
// The package defines the interfaces and types for integrating ordinary
// differential equations of the form dX/dt = f(X, u, t):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems
//   - [Integrator]: numerical stepper
//   - [Controller]: feedback controller computing the input u
//   - [Simulator]: orchestrates a fixed-step run and collects metrics
//
// # Example
//
//	sim, x0, _ := tf.NewSimulation(motor, control.NewPID(kp, ki, kd, target))
//	sim.AddMetric(metrics.NewOvershoot(target))
//	result, _ := sim.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Use [Ensemble] to evaluate
// several independent simulations concurrently.
package dynamo
