package ui

import "github.com/charmbracelet/lipgloss"

const accentHex = "#7E57C2"

var (
	panelBorder     = lipgloss.RoundedBorder()
	panelTitleStyle = lipgloss.NewStyle().Bold(true)

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	logoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(accentHex)).Bold(true)
	versionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	buttonStyle        = mutedStyle
	buttonFocusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color(accentHex)).Bold(true)
	tabStyle           = mutedStyle
	tabActiveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(accentHex)).Bold(true).Underline(true)
	cursorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Bold(true)
)
