package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("170")).Padding(0, 1)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
	debugStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("238"))

	userStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	timeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	typingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	speakingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	logStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	buttonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)

	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStatusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)
