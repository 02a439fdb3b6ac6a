// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"
	"testing"
)

// capture runs f with stdout and stderr redirected and returns what
// each stream received.
func capture(t *testing.T, f func()) (stdout, stderr string) {
	t.Helper()

	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	oldOut, oldErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outW, errW
	defer func() { os.Stdout, os.Stderr = oldOut, oldErr }()

	f()

	outW.Close()
	errW.Close()
	outBytes, _ := io.ReadAll(outR)
	errBytes, _ := io.ReadAll(errR)
	return string(outBytes), string(errBytes)
}

// setLevel pins the personality for one test and restores it after.
func setLevel(t *testing.T, level PersonalityLevel) {
	t.Helper()
	orig := GetPersonality()
	t.Cleanup(func() { SetPersonality(orig) })
	SetPersonalityLevel(level)
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconPulse} {
		if icon.Render() == "" {
			t.Errorf("icon %q rendered empty", string(icon))
		}
	}

	// Unknown icons pass through without styling.
	if got := Icon("?").Render(); got != "?" {
		t.Errorf(`Icon("?").Render() = %q, want "?"`, got)
	}
}

func TestStatusLines(t *testing.T) {
	tests := []struct {
		name     string
		print    func(string)
		tag      string
		onStderr bool
	}{
		{"success", Success, "OK", false},
		{"warning", Warning, "WARN", true},
		{"error", Error, "ERROR", true},
	}

	for _, tc := range tests {
		t.Run(tc.name+" machine tag", func(t *testing.T) {
			setLevel(t, PersonalityMachine)
			stdout, stderr := capture(t, func() { tc.print("store offline") })

			got := stdout
			if tc.onStderr {
				got = stderr
			}
			if want := tc.tag + ": store offline\n"; got != want {
				t.Errorf("machine output = %q, want %q", got, want)
			}
		})

		t.Run(tc.name+" styled text", func(t *testing.T) {
			setLevel(t, PersonalityFull)
			stdout, _ := capture(t, func() { tc.print("store offline") })

			if !strings.Contains(stdout, "store offline") {
				t.Errorf("styled output lost the message: %q", stdout)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	t.Run("suppressed in machine mode", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		stdout, _ := capture(t, func() { Title("Seed complete") })

		if stdout != "" {
			t.Errorf("machine mode printed a title: %q", stdout)
		}
	})

	t.Run("styled otherwise", func(t *testing.T) {
		setLevel(t, PersonalityFull)
		stdout, _ := capture(t, func() { Title("Seed complete") })

		if !strings.Contains(stdout, "Seed complete") {
			t.Errorf("title text missing: %q", stdout)
		}
	})
}

func TestInfo(t *testing.T) {
	t.Run("bare text in machine mode", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		stdout, _ := capture(t, func() { Info("4 teams") })

		if stdout != "4 teams\n" {
			t.Errorf("machine info = %q, want %q", stdout, "4 teams\n")
		}
	})

	t.Run("gutter mark otherwise", func(t *testing.T) {
		setLevel(t, PersonalityFull)
		stdout, _ := capture(t, func() { Info("4 teams") })

		if !strings.Contains(stdout, "4 teams") {
			t.Errorf("info text missing: %q", stdout)
		}
	})
}

func TestMuted_SuppressedInMachineMode(t *testing.T) {
	setLevel(t, PersonalityMachine)
	stdout, _ := capture(t, func() { Muted("rerun with --seed 42") })

	if stdout != "" {
		t.Errorf("machine mode printed muted text: %q", stdout)
	}
}

func TestWarningBox(t *testing.T) {
	t.Run("one stderr line in machine mode", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		_, stderr := capture(t, func() {
			WarningBox("Insecure memory", "secrets may swap to disk")
		})

		if want := "WARN Insecure memory: secrets may swap to disk\n"; stderr != want {
			t.Errorf("machine warning = %q, want %q", stderr, want)
		}
	})

	t.Run("framed otherwise", func(t *testing.T) {
		setLevel(t, PersonalityFull)
		stdout, _ := capture(t, func() {
			WarningBox("Insecure memory", "secrets may swap to disk")
		})

		if !strings.Contains(stdout, "Insecure memory") || !strings.Contains(stdout, "secrets may swap to disk") {
			t.Errorf("box lost title or content: %q", stdout)
		}
	})
}

func TestKeyValue(t *testing.T) {
	t.Run("machine pairs", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		if got := KeyValue("teams", 12); got != "teams=12" {
			t.Errorf("KeyValue() = %q, want %q", got, "teams=12")
		}
	})

	t.Run("styled label and value", func(t *testing.T) {
		setLevel(t, PersonalityFull)
		got := KeyValue("teams", 12)
		if !strings.Contains(got, "teams") || !strings.Contains(got, "12") {
			t.Errorf("KeyValue() = %q, want label and value present", got)
		}
	})
}

func TestCounts(t *testing.T) {
	t.Run("machine pairs", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		stdout, _ := capture(t, func() { Counts("prs", 10, "issues", 4) })

		if !strings.Contains(stdout, "prs=10") || !strings.Contains(stdout, "issues=4") {
			t.Errorf("count pairs missing: %q", stdout)
		}
	})

	t.Run("odd arguments print nothing", func(t *testing.T) {
		setLevel(t, PersonalityMachine)
		stdout, _ := capture(t, func() { Counts("orphan") })

		if stdout != "" {
			t.Errorf("odd pair list printed: %q", stdout)
		}
	})
}
