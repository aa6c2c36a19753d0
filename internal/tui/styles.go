// Package tui implements the Bubble Tea popup listing the tasks due
// today.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	groupStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	recordingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pausedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
