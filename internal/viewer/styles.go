package viewer

import "github.com/charmbracelet/lipgloss"

var (
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("8"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6"))

	autoBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("10")).
			Padding(0, 1)

	manualBadgeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("11")).
				Padding(0, 1)

	helpKeyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	helpDescStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	helpDisabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)
