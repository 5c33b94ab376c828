// Package device simulates the mouse firmware's system-test loop so the
// capture pipeline can run without hardware. It understands the same line
// commands as the firmware and emits one telemetry line per simulated
// millisecond while any report is enabled.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/motorlab/internal/dynamo"
	"github.com/san-kum/motorlab/internal/integrators"
	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/telemetry"
)

// PortName selects the simulated device instead of a serial port.
const PortName = "sim"

// idleLimit bounds how many silent milliseconds a Read advances before it
// reports a timeout.
const idleLimit = 1000

// MotorParams describe a simulated motor as a first-order velocity response.
type MotorParams struct {
	// Gain is the steady-state velocity in ticks/ms per unit of power.
	Gain float64
	// TimeConstant in milliseconds.
	TimeConstant float64
	// MaxPower clamps commanded power.
	MaxPower float64
}

// ErrInvalidParams is returned for motor parameters the model cannot
// integrate.
var ErrInvalidParams = errors.New("device: invalid motor parameters")

// Validate requires a positive time constant and a finite gain. A zero
// MaxPower disables clamping.
func (p MotorParams) Validate() error {
	switch {
	case !(p.TimeConstant > 0) || math.IsInf(p.TimeConstant, 0):
		return fmt.Errorf("%w: time constant %g ms", ErrInvalidParams, p.TimeConstant)
	case math.IsNaN(p.Gain) || math.IsInf(p.Gain, 0):
		return fmt.Errorf("%w: gain %g", ErrInvalidParams, p.Gain)
	case math.IsNaN(p.MaxPower) || p.MaxPower < 0:
		return fmt.Errorf("%w: max power %g", ErrInvalidParams, p.MaxPower)
	}
	return nil
}

func DefaultMotorParams() MotorParams {
	return MotorParams{
		Gain:         0.000825,
		TimeConstant: 44.8,
		MaxPower:     10000,
	}
}

// motor is dv/dt = (K*p - v)/ta, dx/dt = v with state [v, x].
type motor struct {
	params    MotorParams
	power     float64
	state     dynamo.State
	reporting bool
}

func (m *motor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{
		(m.params.Gain*u[0] - x[0]) / m.params.TimeConstant,
		x[0],
	}
}

func (m *motor) StateDim() int   { return 2 }
func (m *motor) ControlDim() int { return 1 }

// Mouse is a simulated mouse attached to a virtual serial port.
type Mouse struct {
	mu sync.Mutex

	now        int64
	timeReport bool
	distance   map[string]bool
	motors     map[telemetry.Side]*motor
	integ      dynamo.Integrator

	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

// New returns a simulated mouse whose clock starts at start milliseconds.
// The parameters are expected to pass Validate.
func New(left, right MotorParams, start int64) *Mouse {
	return &Mouse{
		now:      start,
		distance: make(map[string]bool),
		motors: map[telemetry.Side]*motor{
			telemetry.Left:  {params: left, state: dynamo.State{0, 0}},
			telemetry.Right: {params: right, state: dynamo.State{0, 0}},
		},
		integ: integrators.NewRK4(),
	}
}

// Opener returns a link.Opener that always yields a fresh simulated mouse.
func Opener(params MotorParams) link.Opener {
	return func(cfg link.Config) (io.ReadWriteCloser, error) {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		return New(params, params, 0), nil
	}
}

// Write accepts command bytes; each complete line is executed.
func (m *Mouse) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}

	m.in.Write(p)
	for {
		line, err := m.in.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			m.in.Reset()
			m.in.WriteString(line)
			break
		}
		m.execute(strings.Fields(line))
	}
	return len(p), nil
}

// Read returns pending replies and telemetry, advancing the simulated clock
// one millisecond per report line.
func (m *Mouse) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.EOF
	}

	for idle := 0; m.out.Len() == 0; idle++ {
		if idle >= idleLimit {
			return 0, link.ErrTimeout
		}
		m.tick()
	}
	return m.out.Read(p)
}

func (m *Mouse) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Now returns the simulated firmware time in milliseconds.
func (m *Mouse) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Position returns the encoder count of a motor.
func (m *Mouse) Position(side telemetry.Side) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ticks(m.motors[side].state[1])
}

func ticks(x float64) int64 {
	return int64(math.Floor(x))
}

func (m *Mouse) tick() {
	for _, mot := range m.motors {
		mot.state = m.integ.Step(mot, mot.state, dynamo.Control{mot.power}, float64(m.now), 1)
	}
	m.now++

	var fields []string
	if m.timeReport {
		fields = append(fields, telemetry.KeyTime+":"+strconv.FormatInt(m.now, 10))
	}
	for _, side := range []telemetry.Side{telemetry.Left, telemetry.Right} {
		if mot := m.motors[side]; mot.reporting {
			fields = append(fields, side.Key()+":"+strconv.FormatInt(ticks(mot.state[1]), 10))
		}
	}
	for _, sensor := range []string{"left", "right", "front"} {
		if m.distance[sensor] {
			key := strings.ToUpper(sensor[:1]) + "D"
			fields = append(fields, key+": Some(180)")
		}
	}
	if len(fields) == 0 {
		return
	}
	m.out.WriteString(strings.Join(fields, ",") + ",\n")
}

func (m *Mouse) unknown(word string) {
	fmt.Fprintf(&m.out, "Unknown command: %q\n", word)
}

func (m *Mouse) execute(words []string) {
	if len(words) == 0 {
		return
	}
	switch words[0] {
	case "time":
		if on, ok := m.reportSwitch(words[1:]); ok {
			m.timeReport = on
		}
	case "motor":
		if len(words) < 2 {
			m.unknown("")
			return
		}
		side, ok := telemetry.ParseSide(words[1])
		if !ok || (words[1] != "left" && words[1] != "right") {
			m.unknown(words[1])
			return
		}
		m.motorCommand(m.motors[side], words[2:])
	case "distance":
		if len(words) < 2 {
			m.unknown("")
			return
		}
		switch words[1] {
		case "left", "right", "front":
			if on, ok := m.reportSwitch(words[2:]); ok {
				m.distance[words[1]] = on
			}
		default:
			m.unknown(words[1])
		}
	default:
		m.unknown(words[0])
	}
}

func (m *Mouse) reportSwitch(words []string) (bool, bool) {
	if len(words) < 2 || words[0] != "report" {
		m.unknown(strings.Join(words, " "))
		return false, false
	}
	switch words[1] {
	case "on":
		return true, true
	case "off":
		return false, true
	}
	m.unknown(words[1])
	return false, false
}

func (m *Mouse) motorCommand(mot *motor, words []string) {
	if len(words) == 0 {
		m.unknown("")
		return
	}
	switch words[0] {
	case "report":
		if on, ok := m.reportSwitch(words); ok {
			mot.reporting = on
		}
	case "set":
		if len(words) < 2 {
			m.unknown("set")
			return
		}
		power, err := strconv.ParseFloat(words[1], 64)
		if err != nil {
			m.unknown(words[1])
			return
		}
		if max := mot.params.MaxPower; max > 0 {
			power = math.Max(-max, math.Min(max, power))
		}
		mot.power = power
	default:
		m.unknown(words[0])
	}
}
