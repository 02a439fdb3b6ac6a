// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux styles devpulse terminal output, degrading gracefully
// through the personality levels down to plain machine-readable lines.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// devpulse palette: signal violets on graphite, with conventional
// semantic colors for status output.
var (
	ColorPulseBright  = lipgloss.Color("#9D8CFF") // highlights, titles
	ColorPulsePrimary = lipgloss.Color("#7C6AF2") // brand accents
	ColorSlate        = lipgloss.Color("#5A6375") // muted text
	ColorSuccess      = lipgloss.Color("#3DDC97")
	ColorWarning      = lipgloss.Color("#FFC857")
	ColorError        = lipgloss.Color("#EF476F")
)

// Styles holds the shared lipgloss styles the print helpers draw from.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// WarningBox frames operator warnings that must not scroll past.
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorPulseBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorPulseBright).Bold(true),

	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph carrying a theme color.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconPulse   Icon = "▲"
)

var iconStyles = map[Icon]lipgloss.Style{
	IconSuccess: Styles.Success,
	IconWarning: Styles.Warning,
	IconError:   Styles.Error,
	IconPending: Styles.Muted,
	IconPulse:   Styles.Highlight,
}

// Render returns the icon in its theme color; unknown icons pass
// through unstyled.
func (i Icon) Render() string {
	if style, ok := iconStyles[i]; ok {
		return style.Render(string(i))
	}
	return string(i)
}

// statusLine prints one status-tagged line, degrading with the
// personality level. Machine output goes to w under a stable tag;
// anything richer goes to stdout.
func statusLine(w *os.File, tag string, icon Icon, style lipgloss.Style, text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(w, "%s: %s\n", tag, text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", icon.Render(), text)
	default:
		fmt.Printf("%s %s\n", icon.Render(), style.Render(text))
	}
}

// Success prints a confirmation line.
func Success(text string) { statusLine(os.Stdout, "OK", IconSuccess, Styles.Success, text) }

// Warning prints a warning line; machine mode routes it to stderr.
func Warning(text string) { statusLine(os.Stderr, "WARN", IconWarning, Styles.Warning, text) }

// Error prints an error line; machine mode routes it to stderr.
func Error(text string) { statusLine(os.Stderr, "ERROR", IconError, Styles.Error, text) }

// Title prints a styled heading. Machine mode suppresses it.
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Info prints a detail line under a colored gutter mark, or the bare
// text in machine mode.
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Machine mode suppresses it.
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// WarningBox frames a warning the operator has to see, such as the
// insecure-memory fallback. Machine mode collapses it to one stderr
// line.
func WarningBox(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(os.Stderr, "WARN %s: %s\n", title, content)
		return
	}
	heading := Styles.Warning.Bold(true).Render(title)
	fmt.Println(Styles.WarningBox.Width(60).Render(heading + "\n" + content))
}

// KeyValue formats a labeled value for summary output.
func KeyValue(label string, value any) string {
	if GetPersonality().Level == PersonalityMachine {
		return fmt.Sprintf("%s=%v", label, value)
	}
	return fmt.Sprintf("%s %v", Styles.Muted.Render(label+":"), Styles.Bold.Render(fmt.Sprintf("%v", value)))
}

// Counts prints a summary line with labeled counts in order.
func Counts(pairs ...any) {
	if len(pairs)%2 != 0 {
		return
	}
	if GetPersonality().Level == PersonalityMachine {
		for i := 0; i < len(pairs); i += 2 {
			fmt.Printf("%v=%v ", pairs[i], pairs[i+1])
		}
		fmt.Println()
		return
	}
	for i := 0; i < len(pairs); i += 2 {
		fmt.Printf("%s %s  ",
			Styles.Bold.Render(fmt.Sprintf("%v", pairs[i+1])),
			Styles.Muted.Render(fmt.Sprintf("%v", pairs[i])),
		)
	}
	fmt.Println()
}
