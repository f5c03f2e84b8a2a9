package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/codenotate/internal/storage"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9e9e9e"))
	labelStyle = lipgloss.NewStyle().Width(18)
)

// statusLabel renders a fixed-width, colored file status
func statusLabel(s storage.FileStatus) string {
	text := lipgloss.NewStyle().Width(9).Render(string(s))
	switch s {
	case storage.FileSucceeded:
		return okStyle.Render(text)
	case storage.FileFailed:
		return errorStyle.Render(text)
	default:
		return mutedStyle.Render(text)
	}
}

// field renders one aligned "label: value" line
func field(label string, value interface{}) string {
	return labelStyle.Render(label+":") + " " + fmt.Sprint(value)
}
