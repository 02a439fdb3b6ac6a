// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatcher spins up a watcher delivering reloaded configs on a channel.
func startWatcher(t *testing.T, path string) (<-chan *DevpulseConfig, func()) {
	t.Helper()

	reloads := make(chan *DevpulseConfig, 4)
	w, err := NewWatcher(path, func(cfg *DevpulseConfig) {
		reloads <- cfg
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	return reloads, func() {
		cancel()
		w.Stop()
	}
}

// TestWatcher_ReloadOnChange verifies a write triggers one reload.
func TestWatcher_ReloadOnChange(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "devpulse.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	reloads, stop := startWatcher(t, configPath)
	defer stop()

	content := []byte("server:\n  addr: \":9999\"\n")
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloads:
		if cfg.Server.Addr != ":9999" {
			t.Errorf("reloaded Server.Addr = %q, want %q", cfg.Server.Addr, ":9999")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered after config write")
	}
}

// TestWatcher_InvalidChangeKeepsPrevious verifies a bad write is dropped
// and a following good write still reloads.
func TestWatcher_InvalidChangeKeepsPrevious(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "devpulse.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	reloads, stop := startWatcher(t, configPath)
	defer stop()

	// A change that fails validation must not reach the callback.
	bad := []byte("telemetry:\n  trace_exporter: \"zipkin\"\n")
	if err := os.WriteFile(configPath, bad, 0644); err != nil {
		t.Fatalf("failed to write bad config: %v", err)
	}

	select {
	case <-reloads:
		t.Fatal("invalid config should not be delivered")
	case <-time.After(DefaultDebounceWindow * 4):
	}

	good := []byte("server:\n  addr: \":7000\"\n")
	if err := os.WriteFile(configPath, good, 0644); err != nil {
		t.Fatalf("failed to write good config: %v", err)
	}

	select {
	case cfg := <-reloads:
		if cfg.Server.Addr != ":7000" {
			t.Errorf("reloaded Server.Addr = %q, want %q", cfg.Server.Addr, ":7000")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered after recovery write")
	}
}

// TestWatcher_IgnoresSiblingFiles verifies unrelated writes do not reload.
func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "devpulse.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	reloads, stop := startWatcher(t, configPath)
	defer stop()

	sibling := filepath.Join(tempDir, "other.yaml")
	if err := os.WriteFile(sibling, []byte("noise: true\n"), 0644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	select {
	case <-reloads:
		t.Fatal("sibling file write should not trigger a reload")
	case <-time.After(DefaultDebounceWindow * 4):
	}
}

// TestNewWatcher_RequiresCallback verifies the callback is mandatory.
func TestNewWatcher_RequiresCallback(t *testing.T) {
	tempDir := t.TempDir()
	if _, err := NewWatcher(filepath.Join(tempDir, "devpulse.yaml"), nil, nil); err == nil {
		t.Fatal("NewWatcher() with nil callback should fail")
	}
}

// TestWatcher_StopIdempotent verifies Stop can be called repeatedly.
func TestWatcher_StopIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "devpulse.yaml")

	w, err := NewWatcher(configPath, func(*DevpulseConfig) {}, nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	w.Stop()
	w.Stop()
}
