package device

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/motorlab/internal/link"
	"github.com/san-kum/motorlab/internal/telemetry"
)

func TestMouseReportsOnlyWhenEnabled(t *testing.T) {
	m := New(DefaultMotorParams(), DefaultMotorParams(), 0)

	buf := make([]byte, 64)
	if _, err := m.Read(buf); !errors.Is(err, link.ErrTimeout) {
		t.Fatalf("expected timeout with reports off, got %v", err)
	}
	if m.Now() != idleLimit {
		t.Errorf("clock = %d, want %d", m.Now(), idleLimit)
	}

	io.WriteString(m, "time report on\n")
	r := bufio.NewReader(m)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "T:1001,\n" {
		t.Errorf("line = %q", line)
	}
}

func TestMouseUnknownCommand(t *testing.T) {
	m := New(DefaultMotorParams(), DefaultMotorParams(), 0)
	io.WriteString(m, "motor middle set 5\n")

	line, err := bufio.NewReader(m).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(line, "Unknown command:") {
		t.Errorf("line = %q", line)
	}
}

func TestMousePartialWrites(t *testing.T) {
	m := New(DefaultMotorParams(), DefaultMotorParams(), 0)
	io.WriteString(m, "motor left ")
	io.WriteString(m, "set 500\n")

	if p := m.motors[telemetry.Left].power; p != 500 {
		t.Errorf("power = %f, want 500", p)
	}
}

func TestMouseClampsPower(t *testing.T) {
	m := New(DefaultMotorParams(), DefaultMotorParams(), 0)
	io.WriteString(m, "motor right set -20000\n")

	if p := m.motors[telemetry.Right].power; p != -10000 {
		t.Errorf("power = %f, want -10000", p)
	}
}

func TestMouseStepResponse(t *testing.T) {
	params := DefaultMotorParams()
	sess := link.NewSession(New(params, params, 500), nil)
	defer sess.Close()

	ctx := context.Background()
	if err := sess.EnableReports(telemetry.Left); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := sess.SetPower(telemetry.Left, 10000); err != nil {
		t.Fatalf("set: %v", err)
	}

	var first, last telemetry.Frame
	for i := 0; i < 1000; i++ {
		frame, err := sess.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i == 0 {
			first = frame
		}
		last = frame
	}

	t0, _ := first.Time()
	t1, _ := last.Time()
	if t1-t0 != 999 {
		t.Errorf("frames not one per ms: %d..%d", t0, t1)
	}

	// after ~22 time constants the velocity is K*p = 8.25 ticks/ms
	p0, _ := first.Int(telemetry.KeyLeftMotor)
	p1, _ := last.Int(telemetry.KeyLeftMotor)
	final := params.Gain * 10000
	ta := params.TimeConstant
	expected := final * (999 - ta*(math.Exp(-1/ta)-math.Exp(-1000/ta)))
	if math.Abs(float64(p1-p0)-expected) > 2 {
		t.Errorf("travel = %d ticks, want ~%.1f", p1-p0, expected)
	}
}

func TestOpenerRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *MotorParams)
	}{
		{"zero time constant", func(p *MotorParams) { p.TimeConstant = 0 }},
		{"negative time constant", func(p *MotorParams) { p.TimeConstant = -1 }},
		{"nan gain", func(p *MotorParams) { p.Gain = math.NaN() }},
		{"negative max power", func(p *MotorParams) { p.MaxPower = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultMotorParams()
			tt.modify(&params)
			if _, err := Opener(params)(link.DefaultConfig()); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}

	rw, err := Opener(DefaultMotorParams())(link.DefaultConfig())
	if err != nil {
		t.Fatalf("default params rejected: %v", err)
	}
	rw.Close()
}
