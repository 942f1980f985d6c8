package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Running   int
	Total     int
	Errors    int
	Locale    string
	Width     int
}

func New() Model {
	return Model{}
}

func (m *Model) SetCounts(running, total int) {
	m.Running = running
	m.Total = total
}

func (m Model) View() string {
	width := max(m.Width, 40)

	var conn string
	if m.Connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := conn + sep + fmt.Sprintf("%d/%d monitoring", m.Running, m.Total)
	if m.Errors > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(fmt.Sprintf("%d alerts", m.Errors))
	}
	if m.Locale != "" {
		content += sep + theme.StyleDimmed.Render(m.Locale)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
