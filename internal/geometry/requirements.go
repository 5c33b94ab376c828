package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"periph.io/x/conn/v3/physic"
)

// DefaultSamples is the number of curve parameters evaluated by Requirements.
const DefaultSamples = 1000

var ErrInvalidMechanics = errors.New("geometry: invalid mechanics")

// Chassis is the part of the mouse that sets wheel loads.
type Chassis struct {
	Wheelbase   physic.Distance
	WheelRadius physic.Distance
	Mass        physic.Mass
}

func (c Chassis) Validate() error {
	if c.Wheelbase <= 0 || c.WheelRadius <= 0 || c.Mass <= 0 {
		return fmt.Errorf("%w: wheelbase %s, wheel radius %s, mass %s", ErrInvalidMechanics, c.Wheelbase, c.WheelRadius, c.Mass)
	}
	return nil
}

// Profile holds the kinematics of driving a curve at constant speed, in SI
// units. Accelerations are central values between consecutive samples and
// use AccTimes.
type Profile struct {
	Times      []float64 `json:"times"`
	Lengths    []float64 `json:"lengths"`
	Curvatures []float64 `json:"curvatures"`
	// Angular velocity of the chassis, rad/s.
	AngularVelocities []float64 `json:"angular_velocities"`
	LeftVelocities    []float64 `json:"left_velocities"`
	RightVelocities   []float64 `json:"right_velocities"`

	AccTimes          []float64 `json:"acc_times"`
	LeftAccelerations []float64 `json:"left_accelerations"`
	RightAccelerations []float64 `json:"right_accelerations"`
	// Wheel angular accelerations, rad/s².
	LeftAngularAcc  []float64 `json:"left_angular_acc"`
	RightAngularAcc []float64 `json:"right_angular_acc"`
	// Wheel torques, N·m.
	LeftTorques  []float64 `json:"left_torques"`
	RightTorques []float64 `json:"right_torques"`
}

// Peaks summarizes a profile.
type Peaks struct {
	Duration        float64 `json:"duration_s"`
	Length          float64 `json:"length_m"`
	MaxCurvature    float64 `json:"max_curvature"`
	MaxAngularVel   float64 `json:"max_angular_velocity"`
	MaxWheelSpeed   float64 `json:"max_wheel_speed"`
	MaxAcceleration float64 `json:"max_acceleration"`
	MaxTorque       float64 `json:"max_torque"`
}

// Requirements drives curve at a constant linear speed and computes the
// wheel velocities, accelerations and torques at n evenly spaced curve
// parameters. The wheel inertia is m r²/2 with m the mass of the mouse.
func Requirements(curve Bezier, chassis Chassis, speed physic.Speed, n int) (*Profile, error) {
	if err := chassis.Validate(); err != nil {
		return nil, err
	}
	if speed <= 0 {
		return nil, fmt.Errorf("%w: speed %s", ErrInvalidMechanics, speed)
	}
	if curve.Degree() < 1 {
		return nil, ErrDegenerate
	}
	if n < 2 {
		n = DefaultSamples
	}

	v := metresPerSecond(speed)
	halfBase := metres(chassis.Wheelbase) / 2
	radius := metres(chassis.WheelRadius)
	inertia := kilograms(chassis.Mass) * radius * radius / 2

	p := &Profile{
		Times:             make([]float64, n),
		Lengths:           make([]float64, n),
		Curvatures:        make([]float64, n),
		AngularVelocities: make([]float64, n),
		LeftVelocities:    make([]float64, n),
		RightVelocities:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s := param(i, n)
		p.Lengths[i] = curve.Length(s)
		p.Times[i] = p.Lengths[i] / v
		p.Curvatures[i] = curve.Curvature(s)
		p.AngularVelocities[i] = p.Curvatures[i] * v
		p.LeftVelocities[i] = v - p.AngularVelocities[i]*halfBase
		p.RightVelocities[i] = v + p.AngularVelocities[i]*halfBase
	}

	p.AccTimes, p.LeftAccelerations = differentiate(p.Times, p.LeftVelocities)
	_, p.RightAccelerations = differentiate(p.Times, p.RightVelocities)

	p.LeftAngularAcc = make([]float64, len(p.AccTimes))
	p.RightAngularAcc = make([]float64, len(p.AccTimes))
	p.LeftTorques = make([]float64, len(p.AccTimes))
	p.RightTorques = make([]float64, len(p.AccTimes))
	for i := range p.AccTimes {
		p.LeftAngularAcc[i] = p.LeftAccelerations[i] / radius
		p.RightAngularAcc[i] = p.RightAccelerations[i] / radius
		p.LeftTorques[i] = inertia * p.LeftAngularAcc[i]
		p.RightTorques[i] = inertia * p.RightAngularAcc[i]
	}
	return p, nil
}

// differentiate returns the midpoint times and the finite-difference slopes.
func differentiate(ts, vs []float64) (mid, slope []float64) {
	for i := 0; i+1 < len(ts); i++ {
		dt := ts[i+1] - ts[i]
		if dt == 0 {
			continue
		}
		mid = append(mid, (ts[i]+ts[i+1])/2)
		slope = append(slope, (vs[i+1]-vs[i])/dt)
	}
	return mid, slope
}

// Peaks returns the extreme values of the profile.
func (p *Profile) Peaks() Peaks {
	last := len(p.Times) - 1
	return Peaks{
		Duration:        p.Times[last],
		Length:          p.Lengths[last],
		MaxCurvature:    maxAbs(p.Curvatures),
		MaxAngularVel:   maxAbs(p.AngularVelocities),
		MaxWheelSpeed:   math.Max(maxAbs(p.LeftVelocities), maxAbs(p.RightVelocities)),
		MaxAcceleration: math.Max(maxAbs(p.LeftAccelerations), maxAbs(p.RightAccelerations)),
		MaxTorque:       math.Max(maxAbs(p.LeftTorques), maxAbs(p.RightTorques)),
	}
}

func maxAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(xs)), math.Abs(floats.Min(xs)))
}
