// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command devpulse runs a self-hosted engineering metrics appliance.
//
// devpulse keeps pull-request, issue, commit and workflow-run records in
// an embedded store and serves trend, DORA and dashboard report queries
// over a local HTTP API. A synthetic data generator fills the store with
// a realistic organization for demos and load testing.
//
// Usage:
//
//	devpulse serve
//	devpulse serve --addr :9000 --debug
//	devpulse seed --org-size 800 --seed 42
//	devpulse data reset --force
//	devpulse data export --timeframe 90d
//	devpulse data backup
//
// Configuration lives in ~/.devpulse/devpulse.yaml and is created with
// defaults on first run. DEVPULSE_CONFIG overrides the location.
package main

import (
	"log"
	"log/slog"
	"os"
)

func main() {
	// Structured logs go to stderr; stdout stays clean for command output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
