package cli

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/forPelevin/hlshorts/internal/console"
)

// Theme returns the huh theme used by the interactive menu.
func Theme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(console.Green).
		PaddingLeft(1)

	t.Focused.Title = lipgloss.NewStyle().
		Foreground(console.Accent).
		Bold(true)

	t.Focused.Description = lipgloss.NewStyle().
		Foreground(console.Muted)

	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(console.Red).
		Bold(true)

	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(console.Red)

	t.Focused.SelectSelector = lipgloss.NewStyle().
		SetString("▸ ").
		Foreground(console.Cyan)

	t.Focused.Option = lipgloss.NewStyle().
		Foreground(console.Cream)

	t.Focused.SelectedOption = lipgloss.NewStyle().
		Foreground(console.Cyan)

	t.Focused.TextInput.Cursor = lipgloss.NewStyle().
		Foreground(console.Cyan)

	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().
		Foreground(console.Muted)

	t.Focused.TextInput.Prompt = lipgloss.NewStyle().
		Foreground(console.Cyan)

	t.Focused.FocusedButton = lipgloss.NewStyle().
		Background(console.Green).
		Foreground(console.Cream).
		Bold(true).
		Padding(0, 1)

	t.Focused.BlurredButton = lipgloss.NewStyle().
		Background(console.Muted).
		Foreground(console.Cream).
		Padding(0, 1)

	t.Focused.NoteTitle = lipgloss.NewStyle().
		Foreground(console.Cyan).
		Bold(true)

	t.Focused.Next = t.Focused.FocusedButton

	t.Blurred.Base = t.Blurred.Base.
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true).
		PaddingLeft(1)

	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(console.Muted)

	t.Blurred.SelectSelector = lipgloss.NewStyle().
		SetString("  ")

	t.Blurred.FocusedButton = t.Focused.BlurredButton
	t.Blurred.BlurredButton = t.Focused.BlurredButton
	t.Blurred.Next = t.Blurred.FocusedButton

	return t
}
