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
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// configDirName is the dot-directory under the user's home.
	configDirName = ".devpulse"

	// configFileName is the YAML file inside configDirName.
	configFileName = "devpulse.yaml"

	// envConfigPath overrides the default config location.
	envConfigPath = "DEVPULSE_CONFIG"
)

var (
	// Global is the loaded configuration. Populated by Load or LoadPath;
	// nil before either succeeds.
	Global *DevpulseConfig

	loadOnce sync.Once
	loadErr  error
)

// Load reads the config from its default location, creating the file
// with defaults on first run. Safe to call from multiple goroutines;
// only the first call does work.
//
// The default location is ~/.devpulse/devpulse.yaml, overridable with
// the DEVPULSE_CONFIG environment variable.
func Load() (*DevpulseConfig, error) {
	loadOnce.Do(func() {
		path, err := DefaultPath()
		if err != nil {
			loadErr = err
			return
		}
		Global, loadErr = loadInternal(path)
	})
	return Global, loadErr
}

// LoadPath reads the config from an explicit path, for the --config
// flag. The file must exist; unlike Load it is never auto-created,
// since a typo'd path silently growing a fresh config would mask the
// mistake. Updates Global on success.
func LoadPath(path string) (*DevpulseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	Global = cfg
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	if env := os.Getenv(envConfigPath); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Dir returns the directory holding the config file. The store default
// path lives under it.
func Dir() (string, error) {
	path, err := DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// loadInternal reads the file at path, creating it with defaults first
// if it does not exist.
func loadInternal(path string) (*DevpulseConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read the config file %w", err)
	}

	return parse(data)
}

// parse unmarshals and validates config bytes.
func parse(data []byte) (*DevpulseConfig, error) {
	var cfg DevpulseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// createDefault writes a fresh config file with default values,
// creating parent directories as needed.
func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to serialize the default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write the default config: %w", err)
	}
	return nil
}
