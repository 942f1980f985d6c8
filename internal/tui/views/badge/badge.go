// Package badge renders the colored status pill.
package badge

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/tui/theme"
)

// Render draws status with its localized label. An empty label falls back
// to the status name.
func Render(status session.Status, label string) string {
	if label == "" {
		label = status.String()
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBright).
		Background(theme.StatusColor(status)).
		Padding(0, 1).
		Render(theme.StatusGlyph(status) + " " + label)
}
