// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tui provides the interactive terminal surfaces: session and
// change pickers, colorized diff rendering, and plan/coverage tables.
//
// # Thread Safety
//
// TUI components are designed for single-threaded use within the
// bubbletea event loop. Do not access TUI state from multiple goroutines.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("245"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	hunkHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))
)

// Interactive reports whether stdout is a terminal. Pickers and pagers must
// not run when it is false; callers fall back to flag-driven behavior.
func Interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Warn renders a warning message.
func Warn(msg string) string {
	return warnStyle.Render(msg)
}

// Success renders a success message.
func Success(msg string) string {
	return addedStyle.Render(msg)
}

// Dim renders secondary text.
func Dim(msg string) string {
	return dimStyle.Render(msg)
}
