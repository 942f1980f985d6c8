// Package waveform draws the sample window as a column plot.
package waveform

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pcg-live/monitor/internal/tui/theme"
)

// Scale is the amplitude mapped to the top and bottom rows.
const Scale = 2.0

// eighth blocks give each row 8 vertical steps.
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Plot renders samples into a width x height grid of runes, oldest sample on
// the left. Samples are resampled to fit width and clamped to ±Scale. Rows
// are returned top first without styling.
func Plot(samples []float64, width, height int) []string {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	if len(samples) == 0 {
		mid := height / 2
		grid[mid] = []rune(strings.Repeat("─", width))
		return toStrings(grid)
	}

	levels := height * 8
	for col := 0; col < width; col++ {
		v := samples[col*len(samples)/width]
		if math.IsNaN(v) {
			v = 0
		}
		v = math.Max(-Scale, math.Min(Scale, v))
		// 0 maps to the bottom of the grid, levels to the top.
		level := int(math.Round((v + Scale) / (2 * Scale) * float64(levels)))
		if level < 1 {
			level = 1
		}
		for r := 0; r < height; r++ {
			rowBase := (height - 1 - r) * 8
			fill := level - rowBase
			switch {
			case fill >= 8:
				grid[r][col] = blocks[8]
			case fill > 0:
				grid[r][col] = blocks[fill]
			}
		}
	}
	return toStrings(grid)
}

func toStrings(grid [][]rune) []string {
	out := make([]string, len(grid))
	for i, row := range grid {
		out[i] = string(row)
	}
	return out
}

// View renders the plot in a rounded border. Idle sessions are dimmed.
func View(samples []float64, width, height int, running bool) string {
	color := theme.ColorTrace
	if !running {
		color = theme.ColorTraceIdle
	}
	innerW := width - 2
	innerH := height - 2
	rows := Plot(samples, innerW, innerH)
	body := lipgloss.NewStyle().Foreground(color).Render(strings.Join(rows, "\n"))
	return theme.StyleBorder.Render(body)
}
