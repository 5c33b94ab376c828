// Package control provides the controllers driven by the simulator:
//
//   - [PID]: velocity PID loop as run by the mouse firmware, with output
//     saturation and integral clamping
//   - [Constant]: open-loop input (step command or commanded motor power)
//
// # Usage
//
//	pid := control.NewPID(1.0, 0.1, 0.01, 5.0) // Kp, Ki, Kd, setpoint
//	pid.Limit = 10000
//	sim := dynamo.New(plant, integ, pid)
package control
