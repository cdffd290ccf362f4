package notice

import "github.com/charmbracelet/lipgloss"

var (
	colorError = lipgloss.Color("#EF4444")
	colorText  = lipgloss.Color("#E5E7EB")
	colorMuted = lipgloss.Color("#9CA3AF")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	bodyStyle = lipgloss.NewStyle().
			Foreground(colorText)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2)
)
