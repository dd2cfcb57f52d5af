// Package ui holds the terminal styles used by CLI output.
//
// [Palette] wraps a handful of named [lipgloss.Style] values (title, ok, error, warn, help) and renders
// tables of stored credentials.
package ui
