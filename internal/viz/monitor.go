package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/motorlab/internal/capture"
	"github.com/san-kum/motorlab/internal/telemetry"
)

const (
	historyCapacity = 600
	graphWidth      = 60
	frameRate       = 30
)

type (
	// TickMsg redraws the view.
	TickMsg time.Time
	// SampleMsg carries one captured sample.
	SampleMsg telemetry.Sample
	// DoneMsg ends the view when the capture returns.
	DoneMsg struct{ Err error }
)

// Model is the live view of one capture.
type Model struct {
	title    string
	duration float64
	theme    Theme
	styles   styles

	last     telemetry.Sample
	count    int
	prev     *telemetry.Sample
	velocity []float64
	power    []float64

	frozen    bool
	frozenVel []float64
	frozenPow []float64

	done bool
	err  error
}

// NewModel returns a view expecting a capture of about duration ms.
func NewModel(title string, duration float64, theme Theme) Model {
	return Model{
		title:    title,
		duration: duration,
		theme:    theme,
		styles:   newStyles(theme),
		velocity: make([]float64, 0, historyCapacity),
		power:    make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update records samples and handles keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
			if m.frozen {
				m.frozenVel = append([]float64(nil), m.velocity...)
				m.frozenPow = append([]float64(nil), m.power...)
			}
		case "t":
			m.theme = m.theme.next()
			m.styles = newStyles(m.theme)
		}
	case SampleMsg:
		m.record(telemetry.Sample(msg))
	case DoneMsg:
		m.done, m.err = true, msg.Err
		return m, tea.Quit
	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) record(s telemetry.Sample) {
	if m.prev != nil && s.Time > m.prev.Time {
		v := (s.Position - m.prev.Position) / (s.Time - m.prev.Time)
		m.velocity = pushBounded(m.velocity, v)
		m.power = pushBounded(m.power, s.Power)
	}
	m.prev = &s
	m.last = s
	m.count++
}

func pushBounded(h []float64, v float64) []float64 {
	if len(h) == historyCapacity {
		copy(h, h[1:])
		h = h[:len(h)-1]
	}
	return append(h, v)
}

// Samples returns the number of samples seen.
func (m Model) Samples() int { return m.count }

// Err returns the capture error once the view is done.
func (m Model) Err() error { return m.err }

func (m Model) View() string {
	st := m.styles
	vel, pow := m.velocity, m.power
	status := st.ok.Render("CAPTURING")
	switch {
	case m.err != nil:
		status = st.failed.Render("FAILED: " + m.err.Error())
	case m.done:
		status = st.ok.Render("DONE")
	case m.frozen:
		status = st.paused.Render("FROZEN")
		vel, pow = m.frozenVel, m.frozenPow
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(status + "\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.0f ms", m.last.Time))
	row("Position", fmt.Sprintf("%.0f ticks", m.last.Position))
	if len(vel) > 0 {
		row("Velocity", fmt.Sprintf("%.3f ticks/ms", vel[len(vel)-1]))
	} else {
		row("Velocity", "-")
	}
	if m.last.HasPower {
		row("Power", fmt.Sprintf("%.0f", m.last.Power))
	} else {
		row("Power", "-")
	}
	row("Phase", fmt.Sprintf("%d", m.last.Step))
	row("Samples", fmt.Sprintf("%d", m.count))
	if m.duration > 0 {
		frac := m.last.Time / m.duration
		row("Progress", ProgressBar(frac, 30)+fmt.Sprintf(" %3.0f%%", 100*min(frac, 1)))
	}

	if len(vel) > 1 {
		chart := asciigraph.Plot(vel,
			asciigraph.Height(8),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("velocity (ticks/ms)"),
		)
		s.WriteString(st.graph.Render(chart) + "\n")
		s.WriteString(st.label.Render("power") + Sparkline(pow, graphWidth) + "\n")
	}
	s.WriteString(st.help.Render("SP:Freeze T:Theme Q:Quit"))
	return st.panel.Render(s.String())
}

// Monitor forwards capture samples to a running view.
type Monitor struct {
	program *tea.Program
}

var _ capture.Observer = (*Monitor)(nil)

// NewMonitor wraps m in a Bubble Tea program.
func NewMonitor(m Model, opts ...tea.ProgramOption) *Monitor {
	return &Monitor{program: tea.NewProgram(m, opts...)}
}

func (mon *Monitor) OnSample(s telemetry.Sample) {
	mon.program.Send(SampleMsg(s))
}

// Run runs the view while run captures with the monitor as observer.
// Quitting the view cancels the capture. The capture error is returned.
func (mon *Monitor) Run(ctx context.Context, run func(ctx context.Context, obs capture.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		err := run(ctx, mon)
		errc <- err
		mon.program.Send(DoneMsg{Err: err})
	}()

	if _, err := mon.program.Run(); err != nil {
		cancel()
		<-errc
		return fmt.Errorf("live view: %w", err)
	}
	cancel()
	return <-errc
}
