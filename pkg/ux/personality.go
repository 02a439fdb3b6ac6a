// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel selects how much visual styling the CLI emits.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, boxes, and rich formatting
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons with plainer layout
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal keeps icons but drops colors and frames
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits stable plain-text lines for scripts
	PersonalityMachine PersonalityLevel = "machine"
)

// envPersonality overrides the detected output level.
const envPersonality = "DEVPULSE_PERSONALITY"

// Personality holds the current UX configuration
type Personality struct {
	// Level controls overall verbosity (full, standard, minimal, machine)
	Level PersonalityLevel
}

var (
	currentPersonality = Personality{
		Level: PersonalityFull,
	}
	personalityMu sync.RWMutex
)

// GetPersonality returns the active personality.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the active personality.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel changes only the level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// levelAliases maps accepted flag and environment spellings, including
// single-letter shorthands, onto levels.
var levelAliases = map[string]PersonalityLevel{
	"full":     PersonalityFull,
	"f":        PersonalityFull,
	"standard": PersonalityStandard,
	"std":      PersonalityStandard,
	"s":        PersonalityStandard,
	"minimal":  PersonalityMinimal,
	"min":      PersonalityMinimal,
	"m":        PersonalityMinimal,
	"machine":  PersonalityMachine,
	"quiet":    PersonalityMachine,
	"q":        PersonalityMachine,
}

// ParsePersonalityLevel resolves a user-supplied level name. Unknown
// names fall back to standard rather than failing.
func ParsePersonalityLevel(s string) PersonalityLevel {
	if level, ok := levelAliases[strings.ToLower(s)]; ok {
		return level
	}
	return PersonalityStandard
}

// InitPersonality picks the starting level: the environment override
// when set, machine for piped output, full on a terminal.
func InitPersonality() {
	if envLevel := os.Getenv(envPersonality); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}

	// Piped output and CI get machine-parseable lines
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}

	SetPersonalityLevel(PersonalityFull)
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive reports whether prompting the user makes sense here.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && isTerminal()
}

// ShouldShowProgress reports whether live progress output is wanted.
func ShouldShowProgress() bool {
	return GetPersonality().Level != PersonalityMachine
}

// ShouldShowColors reports whether colored output is wanted.
func ShouldShowColors() bool {
	return GetPersonality().Level != PersonalityMachine
}

// DefaultPersonality returns the settings a fresh process starts with.
func DefaultPersonality() Personality {
	return Personality{
		Level: PersonalityFull,
	}
}
