package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))

	phaseStyles = map[string]lipgloss.Style{
		"init":       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#888899")),
		"burn-in":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00")),
		"production": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88")),
	}

	sparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	sparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	sparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// Sparkline renders one cell per value, scaled between 0 and 1. Values
// outside the range are clamped.
func Sparkline(values []float64) string {
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	var b strings.Builder
	for _, v := range values {
		v = min(max(v, 0), 1)
		c := string(chars[int(v*float64(len(chars)-1))])
		switch {
		case v > 0.7:
			b.WriteString(sparkHigh.Render(c))
		case v > 0.3:
			b.WriteString(sparkMid.Render(c))
		default:
			b.WriteString(sparkLow.Render(c))
		}
	}
	return b.String()
}
