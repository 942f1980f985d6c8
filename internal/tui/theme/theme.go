// Package theme provides the Lip Gloss color palette and reusable styles
// for the monitor TUI. It only imports the session package for status and
// level values.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/session"
)

// Status colors.
var (
	ColorPaused   = lipgloss.Color("#6b7280")
	ColorNormal   = lipgloss.Color("#22c55e")
	ColorMild     = lipgloss.Color("#eab308")
	ColorModerate = lipgloss.Color("#f97316")
	ColorSevere   = lipgloss.Color("#dc2626")
)

// Waveform trace colors.
var (
	ColorTrace     = lipgloss.Color("#38bdf8")
	ColorTraceIdle = lipgloss.Color("#374151")
	ColorBaseline  = lipgloss.Color("#1f2937")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#7c3aed")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StatusColor returns the color a status is drawn in.
func StatusColor(s session.Status) lipgloss.Color {
	switch s {
	case session.Normal:
		return ColorNormal
	case session.MildAnomaly:
		return ColorMild
	case session.ModerateAnomaly:
		return ColorModerate
	case session.SevereAnomaly:
		return ColorSevere
	default:
		return ColorPaused
	}
}

// LevelColor returns the color for a notification level.
func LevelColor(l session.Level) lipgloss.Color {
	switch l {
	case session.LevelSuccess:
		return ColorHealthy
	case session.LevelError:
		return ColorDanger
	default:
		return ColorInfo
	}
}

// StatusGlyph returns a single glyph for a status.
func StatusGlyph(s session.Status) string {
	switch s {
	case session.Normal:
		return "●"
	case session.MildAnomaly:
		return "▲"
	case session.ModerateAnomaly:
		return "◆"
	case session.SevereAnomaly:
		return "✖"
	default:
		return "○"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)
