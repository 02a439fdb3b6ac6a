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
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".devpulse", "devpulse.yaml")

	err := createDefault(configPath)
	if err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg DevpulseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Meta.Version != CurrentConfigVersion {
		t.Errorf("Meta.Version = %q, want %q", cfg.Meta.Version, CurrentConfigVersion)
	}
}

// TestCreateDefault_DirectoryCreation verifies directory is created.
func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "devpulse.yaml")

	err := createDefault(configPath)
	if err != nil {
		t.Fatalf("createDefault() failed with nested path: %v", err)
	}

	dirPath := filepath.Dir(configPath)
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		t.Fatal("nested directories were not created")
	}
}

// TestLoadInternal_CreatesOnFirstRun verifies the first-run path.
func TestLoadInternal_CreatesOnFirstRun(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "devpulse.yaml")

	cfg, err := loadInternal(configPath)
	if err != nil {
		t.Fatalf("loadInternal() failed: %v", err)
	}

	if cfg.Server.GetAddr() != DefaultServerAddr {
		t.Errorf("Server.GetAddr() = %q, want %q", cfg.Server.GetAddr(), DefaultServerAddr)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("first run should have created the config file")
	}
}

// TestLoadPath verifies loading an explicit config file.
func TestLoadPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "custom.yaml")

	content := []byte(`
server:
  addr: ":9100"
  rate_limit_per_second: 50
store:
  sync_writes: true
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadPath(configPath)
	if err != nil {
		t.Fatalf("LoadPath() failed: %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9100")
	}
	if cfg.Server.RateLimitPerSecond != 50 {
		t.Errorf("Server.RateLimitPerSecond = %v, want 50", cfg.Server.RateLimitPerSecond)
	}

	if Global != cfg {
		t.Error("LoadPath should update Global")
	}
}

// TestLoadPath_Missing verifies explicit paths are never auto-created.
func TestLoadPath_Missing(t *testing.T) {
	_, err := LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadPath() on a missing file should fail")
	}
}

// TestLoadPath_Invalid verifies malformed YAML is rejected.
func TestLoadPath_Invalid(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte("server: [not, a, map"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadPath(configPath); err == nil {
		t.Fatal("LoadPath() on malformed YAML should fail")
	}
}

// TestLoadPath_FailsValidation verifies constraint enforcement at load.
func TestLoadPath_FailsValidation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.yaml")

	content := []byte(`
telemetry:
  trace_exporter: "zipkin"
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadPath(configPath); err == nil {
		t.Fatal("LoadPath() with an unknown exporter should fail validation")
	}
}

// TestDefaultPath_EnvOverride verifies DEVPULSE_CONFIG takes priority.
func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv(envConfigPath, "/tmp/custom-devpulse.yaml")

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() failed: %v", err)
	}

	if path != "/tmp/custom-devpulse.yaml" {
		t.Errorf("DefaultPath() = %q, want %q", path, "/tmp/custom-devpulse.yaml")
	}
}

// TestDefaultPath_UnderHome verifies the conventional location.
func TestDefaultPath_UnderHome(t *testing.T) {
	t.Setenv(envConfigPath, "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory on this system")
	}

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() failed: %v", err)
	}

	want := filepath.Join(home, configDirName, configFileName)
	if path != want {
		t.Errorf("DefaultPath() = %q, want %q", path, want)
	}
}
