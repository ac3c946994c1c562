// Package render draws read-only views of memory state: a table, a
// value-alignment heatmap and a shift bar chart. It consumes copies only
// and never feeds back into the reprocessing core.
package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiy/rmm-mcp/pkg/types"
)

const (
	inferenceColumnWidth = 48
	barScale             = 60
	maxBarWidth          = 24
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// MemoryTable renders every memory as one table row.
func MemoryTable(mems []types.Memory) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Memories"))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"%-18s %8s %9s %6s %9s  %s",
		"ID", "Valence", "Strength", "Count", "Adaptive", "Inference",
	)))
	b.WriteString("\n")
	if len(mems) == 0 {
		b.WriteString(dimStyle.Render("(no memories)"))
		b.WriteString("\n")
		return b.String()
	}
	for _, m := range mems {
		adaptive := "no"
		if m.IsAdaptive {
			adaptive = "yes"
		}
		b.WriteString(fmt.Sprintf(
			"%-18s %8.2f %9.2f %6d %9s  %s\n",
			truncate(m.Identifier, 18),
			m.CurrentValence,
			m.Strength,
			m.ReprocessingCount,
			adaptive,
			truncate(m.CurrentInference, inferenceColumnWidth),
		))
	}
	return b.String()
}

// AlignmentHeatmap renders one memory's value-alignment scores as a
// color-ramped row per principle.
func AlignmentHeatmap(m types.Memory) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Value Alignment: " + m.Identifier))
	b.WriteString("\n")

	names := make([]string, 0, len(m.ValueAlignment))
	for name := range m.ValueAlignment {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		b.WriteString(dimStyle.Render("(not scored yet)"))
		b.WriteString("\n")
		return b.String()
	}

	for _, name := range names {
		score := m.ValueAlignment[name]
		cell := lipgloss.NewStyle().
			Background(heatColor(score)).
			Foreground(lipgloss.Color("232")).
			Render(fmt.Sprintf(" %.2f ", score))
		b.WriteString(fmt.Sprintf("%-12s %s\n", name, cell))
	}
	return b.String()
}

// ShiftBars renders agreement and mischievousness shifts per memory as a
// signed bar chart.
func ShiftBars(mems []types.Memory) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Inference Shifts"))
	b.WriteString("\n")
	if len(mems) == 0 {
		b.WriteString(dimStyle.Render("(no memories)"))
		b.WriteString("\n")
		return b.String()
	}
	for _, m := range mems {
		b.WriteString(fmt.Sprintf("%-18s agreement   %s\n", truncate(m.Identifier, 18), bar(m.AgreementShift)))
		b.WriteString(fmt.Sprintf("%-18s mischief    %s\n", "", bar(m.MischievousShift)))
	}
	return b.String()
}

func bar(v float64) string {
	width := int(math.Round(math.Abs(v) * barScale))
	if width > maxBarWidth {
		width = maxBarWidth
	}
	sign := "+"
	color := lipgloss.Color("78")
	if v < 0 {
		sign = "-"
		color = lipgloss.Color("203")
	}
	if width == 0 {
		return dimStyle.Render(fmt.Sprintf("%s%.3f", sign, math.Abs(v)))
	}
	painted := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", width))
	return fmt.Sprintf("%s %s%.3f", painted, sign, math.Abs(v))
}

func heatColor(score float64) lipgloss.Color {
	switch {
	case score < 0.2:
		return lipgloss.Color("27")
	case score < 0.4:
		return lipgloss.Color("39")
	case score < 0.6:
		return lipgloss.Color("250")
	case score < 0.8:
		return lipgloss.Color("208")
	default:
		return lipgloss.Color("196")
	}
}

func truncate(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
