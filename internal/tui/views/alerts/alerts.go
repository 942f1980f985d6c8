// Package alerts keeps a short feed of session notifications.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/tui/theme"
)

const DefaultMax = 50

type Alert struct {
	At        time.Time
	Level     session.Level
	SessionID string
	Text      string
}

// Model is a bounded, newest-last list of alerts.
type Model struct {
	Items []Alert
	Max   int
}

func New() Model {
	return Model{Max: DefaultMax}
}

func (m *Model) Add(a Alert) {
	m.Items = append(m.Items, a)
	if m.Max > 0 && len(m.Items) > m.Max {
		m.Items = m.Items[len(m.Items)-m.Max:]
	}
}

// Errors counts error-level alerts in the feed.
func (m Model) Errors() int {
	n := 0
	for _, a := range m.Items {
		if a.Level == session.LevelError {
			n++
		}
	}
	return n
}

// View renders the newest n alerts, newest first.
func (m Model) View(width, n int) string {
	title := theme.StyleHeader.Render("ALERTS")
	if len(m.Items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.StyleDimmed.Render("  none"))
	}

	lines := []string{title}
	for i := len(m.Items) - 1; i >= 0 && len(lines) <= n; i-- {
		a := m.Items[i]
		ts := theme.StyleDimmed.Render(a.At.Format("15:04:05"))
		mark := lipgloss.NewStyle().Foreground(theme.LevelColor(a.Level)).Render("▌")
		text := fmt.Sprintf("%s: %s", a.SessionID, a.Text)
		if max := width - 12; max > 3 && len(text) > max {
			text = text[:max-3] + "..."
		}
		lines = append(lines, strings.Join([]string{mark, ts, text}, " "))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
