// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"sync"
	"time"
)

// SpinnerType selects the animation frame set.
type SpinnerType int

const (
	SpinnerPulse SpinnerType = iota
	SpinnerDots
	SpinnerClock
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerPulse: {"▁", "▃", "▅", "▇", "▅", "▃"},
	SpinnerDots:  {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerClock: {"◐", "◓", "◑", "◒"},
}

const frameInterval = 80 * time.Millisecond

// Spinner animates an in-place activity line on the terminal. Machine
// mode replaces the animation with a single PROGRESS line, so callers
// can use it unconditionally.
type Spinner struct {
	mu        sync.Mutex
	message   string
	kind      SpinnerType
	running   bool
	animating bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSpinner returns a pulse-animation spinner showing message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		kind:    SpinnerPulse,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// WithType switches the animation frame set.
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.kind = t
	return s
}

// Start begins animating. Starting an already-running spinner is a
// no-op.
func (s *Spinner) Start() {
	machine := GetPersonality().Level == PersonalityMachine

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.animating = !machine
	s.mu.Unlock()

	if machine {
		fmt.Printf("PROGRESS: %s\n", s.message)
		return
	}

	go s.animate()
}

// animate redraws the line each tick until Stop closes the stop
// channel, then clears the line and signals done.
func (s *Spinner) animate() {
	frames := spinnerFrames[s.kind]
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.stop:
			fmt.Print("\r\033[K")
			close(s.done)
			return
		case <-ticker.C:
			s.mu.Lock()
			message := s.message
			s.mu.Unlock()
			frame := Styles.Highlight.Render(frames[i%len(frames)])
			fmt.Printf("\r%s %s", frame, message)
		}
	}
}

// Stop halts the animation and waits for the line to clear. Stopping a
// spinner that never started is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	animating := s.animating
	s.mu.Unlock()

	// Machine mode never launches the animation goroutine.
	if !animating {
		return
	}

	close(s.stop)
	<-s.done
}

// UpdateMessage swaps the text shown next to the animation.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess halts the spinner and prints a confirmation line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError halts the spinner and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}

// WithSpinner shows a spinner while fn runs, settling it into a
// success or error line when fn returns.
func WithSpinner(message string, fn func() error) error {
	spin := NewSpinner(message)
	spin.Start()

	if err := fn(); err != nil {
		spin.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	spin.StopWithSuccess(message)
	return nil
}
