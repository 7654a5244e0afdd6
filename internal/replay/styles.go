package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Trace color scheme: each transition category gets a distinct,
// consistent color.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - labels

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - ignored entries

	anchorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green - anchor transitions

	derivedOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")) // Cyan - derived transition, guard satisfied

	derivedFailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")) // Yellow - derived transition, guard failed

	invalidationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")) // Red - invalidation

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("─", 60))
)
