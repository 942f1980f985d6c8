// Package readout shows the heart rate as a number that eases toward each
// new reading.
package readout

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/tui/theme"
)

const fps = 30

// FrameMsg advances the animation of the readout with the matching id.
type FrameMsg struct{ id int }

var nextID int

// Model animates toward Target with a critically damped spring.
type Model struct {
	id     int
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
	active bool
	Label  string
}

func New(label string) Model {
	nextID++
	return Model{
		id:     nextID,
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
		Label:  label,
	}
}

// SetTarget sets the reading to ease toward and returns the command that
// drives the animation, or nil if it is already running.
func (m *Model) SetTarget(bpm int) tea.Cmd {
	m.target = float64(bpm)
	if bpm == 0 {
		m.pos, m.vel = 0, 0
		m.active = false
		return nil
	}
	if m.active {
		return nil
	}
	m.active = true
	return m.frame()
}

// Jump moves straight to bpm, e.g. when switching sessions.
func (m *Model) Jump(bpm int) {
	m.target = float64(bpm)
	m.pos, m.vel = m.target, 0
	m.active = false
}

func (m Model) Value() int { return int(math.Round(m.pos)) }

func (m Model) Target() int { return int(m.target) }

func (m Model) frame() tea.Cmd {
	id := m.id
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{id: id} })
}

// Update steps the spring on this readout's frames. The animation stops once
// the value settles.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	f, ok := msg.(FrameMsg)
	if !ok || f.id != m.id || !m.active {
		return m, nil
	}
	m.Step()
	if !m.active {
		return m, nil
	}
	return m, m.frame()
}

// Step advances the spring by one frame.
func (m *Model) Step() {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.05 && math.Abs(m.vel) < 0.05 {
		m.pos, m.vel = m.target, 0
		m.active = false
	}
}

func (m Model) View() string {
	value := "--"
	if m.target > 0 || m.pos > 0.5 {
		value = fmt.Sprintf("%3d", m.Value())
	}
	heart := lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("♥")
	num := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBright).Render(value)
	return fmt.Sprintf("%s %s %s", heart, num, theme.StyleDimmed.Render(m.Label))
}
