// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/tui/theme"
)

const intro = `# Live PCG monitor

Simulated phonocardiogram and heart rate for each session. Status is
re-evaluated every 100 ticks and may turn into an anomaly every 200 ticks.
Injecting an anomaly forces a severe classification on the next tick.

> Demonstration only. Not a medical device.

## Keys

`

// Markdown builds the help document for bindings.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

// Render turns markdown into styled terminal output wrapped to width. If
// glamour fails the raw markdown is returned.
func Render(markdown string, width int) string {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// View renders the overlay panel.
func View(bindings []key.Binding, width int) string {
	body := Render(Markdown(bindings), width-6)
	return lipgloss.NewStyle().
		Width(width-2).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorAccent).
		Render(strings.TrimRight(body, "\n") + "\n" + theme.StyleDimmed.Render("esc:close"))
}
