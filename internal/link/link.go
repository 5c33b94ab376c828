// Package link manages the serial session with the mouse firmware: opening
// the port, writing line commands and reading telemetry frames.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.bug.st/serial"

	"github.com/san-kum/motorlab/internal/telemetry"
)

const (
	DefaultPort        = "/dev/ttyUSB0"
	DefaultBaudRate    = 230400
	DefaultReadTimeout = time.Second
)

var (
	// ErrTimeout is returned when no line arrives within the read timeout.
	ErrTimeout = errors.New("link: read timeout")
	// ErrClosed is returned when the port reached end of stream.
	ErrClosed = errors.New("link: port closed")
)

type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Opener opens the byte stream behind a session. It is replaced for the
// simulated device and in tests.
type Opener func(cfg Config) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port.
func OpenSerial(cfg Config) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("setting read timeout: %w", err)
		}
	}
	return &timeoutPort{Port: port}, nil
}

// timeoutPort turns the empty read go.bug.st/serial returns on a read
// timeout into ErrTimeout.
type timeoutPort struct {
	serial.Port
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Session is a command/telemetry conversation over one port.
type Session struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	logger *log.Logger

	reporting map[string]bool
	powered   map[telemetry.Side]bool
	lineErrs  int
	// pending holds the start of a line interrupted by a read timeout.
	pending string
}

// Open opens the port with opener and wraps it in a Session.
func Open(cfg Config, opener Opener, logger *log.Logger) (*Session, error) {
	if opener == nil {
		opener = OpenSerial
	}
	rw, err := opener(cfg)
	if err != nil {
		return nil, err
	}
	sess := NewSession(rw, logger)
	sess.logger.Debug("opened link", "port", cfg.Port, "baud", cfg.BaudRate)
	return sess, nil
}

func NewSession(rw io.ReadWriteCloser, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{
		rw:        rw,
		reader:    bufio.NewReader(rw),
		logger:    logger,
		reporting: make(map[string]bool),
		powered:   make(map[telemetry.Side]bool),
	}
}

// Send writes one command line.
func (s *Session) Send(cmd Command) error {
	line := cmd.String()
	s.logger.Debug("send", "cmd", line)
	if _, err := io.WriteString(s.rw, line+"\n"); err != nil {
		return fmt.Errorf("sending %q: %w", line, err)
	}
	return nil
}

// SendAll writes commands in order, stopping at the first error.
func (s *Session) SendAll(cmds ...Command) error {
	for _, cmd := range cmds {
		if err := s.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// EnableReports turns on the time report and the encoder report of side.
func (s *Session) EnableReports(side telemetry.Side) error {
	if err := s.SendAll(TimeReport(true), MotorReport(side, true)); err != nil {
		return err
	}
	s.reporting["time"] = true
	s.reporting[string(side)] = true
	return nil
}

// DisableReports turns the reports enabled by EnableReports back off.
func (s *Session) DisableReports(side telemetry.Side) error {
	if err := s.SendAll(MotorReport(side, false), TimeReport(false)); err != nil {
		return err
	}
	delete(s.reporting, "time")
	delete(s.reporting, string(side))
	return nil
}

// SetPower commands the motor output power.
func (s *Session) SetPower(side telemetry.Side, power int) error {
	if err := s.Send(MotorSet(side, power)); err != nil {
		return err
	}
	s.powered[side] = power != 0
	return nil
}

// ReadLine returns the next raw line without its terminator. A read
// timeout returns ErrTimeout; bytes of a line already received are kept
// and completed by the next call.
func (s *Session) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := s.reader.ReadString('\n')
	line, s.pending = s.pending+line, ""
	switch {
	case err == nil:
		return strings.TrimRight(line, "\r\n"), nil
	case errors.Is(err, ErrTimeout):
		s.pending = line
		return "", ErrTimeout
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrClosed
	case errors.Is(err, io.EOF):
		return strings.TrimRight(line, "\r\n"), nil
	default:
		return "", fmt.Errorf("reading line: %w", err)
	}
}

// ReadFrame returns the next telemetry frame, skipping lines that are not
// reports. Frames with unparsable fields are returned with the field error
// logged, so callers can decide whether the remaining fields suffice.
func (s *Session) ReadFrame(ctx context.Context) (telemetry.Frame, error) {
	for {
		line, err := s.ReadLine(ctx)
		if err != nil {
			return telemetry.Frame{}, err
		}

		frame, err := telemetry.ParseLine(line)
		if errors.Is(err, telemetry.ErrNotTelemetry) {
			if line != "" {
				s.logger.Debug("skipping line", "line", line)
			}
			continue
		}
		if err != nil {
			s.lineErrs++
			s.logger.Warn("bad telemetry field", "err", err)
		}
		return frame, nil
	}
}

// ParseErrors returns the number of frames that carried unparsable fields.
func (s *Session) ParseErrors() int {
	return s.lineErrs
}

// Close stops any motor left running and any reports still enabled, then
// closes the port.
func (s *Session) Close() error {
	var errs []error
	for _, side := range []telemetry.Side{telemetry.Left, telemetry.Right} {
		if s.powered[side] {
			errs = append(errs, s.Send(MotorSet(side, 0)))
		}
		if s.reporting[string(side)] {
			errs = append(errs, s.Send(MotorReport(side, false)))
		}
	}
	if s.reporting["time"] {
		errs = append(errs, s.Send(TimeReport(false)))
	}
	s.reporting = make(map[string]bool)
	s.powered = make(map[telemetry.Side]bool)
	errs = append(errs, s.rw.Close())
	return errors.Join(errs...)
}
