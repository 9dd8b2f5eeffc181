// Package ui holds the terminal styling helpers for command output.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// colorEnabled respects NO_COLOR and non-TTY output.
func colorEnabled() bool {
	return termenv.EnvColorProfile() != termenv.Ascii
}

// RenderPass renders s in the success style.
func RenderPass(s string) string {
	if !colorEnabled() {
		return s
	}
	return passStyle.Render(s)
}

// RenderWarn renders s in the warning style.
func RenderWarn(s string) string {
	if !colorEnabled() {
		return s
	}
	return warnStyle.Render(s)
}

// RenderError renders s in the error style.
func RenderError(s string) string {
	if !colorEnabled() {
		return s
	}
	return errStyle.Render(s)
}

// RenderAccent renders s in the accent style used for counts and names.
func RenderAccent(s string) string {
	if !colorEnabled() {
		return s
	}
	return accentStyle.Render(s)
}

// RenderDim renders s faintly, for secondary detail.
func RenderDim(s string) string {
	if !colorEnabled() {
		return s
	}
	return dimStyle.Render(s)
}
