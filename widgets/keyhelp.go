// Package widgets renders small reusable TUI fragments.
package widgets

import "strings"

// KeyBinding pairs a key with what it does.
type KeyBinding struct {
	Key  string
	Desc string
}

// RenderKeyHelp renders bindings as a single separator-joined help line.
func RenderKeyHelp(bindings []KeyBinding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, b.Key+":"+b.Desc)
	}
	return strings.Join(parts, "  ")
}
