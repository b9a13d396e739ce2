// Package theme holds the color roles used by the TUI.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme maps display roles to terminal colors.
type Theme struct {
	fg      lipgloss.Color
	muted   lipgloss.Color
	accent  lipgloss.Color
	success lipgloss.Color
	warning lipgloss.Color
}

// Default returns the built-in palette.
func Default() *Theme {
	return &Theme{
		fg:      lipgloss.Color("#e0e0e0"),
		muted:   lipgloss.Color("#6b6b6b"),
		accent:  lipgloss.Color("#8c1af2"),
		success: lipgloss.Color("#33cc55"),
		warning: lipgloss.Color("#e6b422"),
	}
}

func (t *Theme) FG() lipgloss.Color      { return t.fg }
func (t *Theme) Muted() lipgloss.Color   { return t.muted }
func (t *Theme) Accent() lipgloss.Color  { return t.accent }
func (t *Theme) Success() lipgloss.Color { return t.success }
func (t *Theme) Warning() lipgloss.Color { return t.warning }
