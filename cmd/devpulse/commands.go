// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"

	"github.com/devpulsehq/devpulse/cmd/devpulse/config"
	"github.com/devpulsehq/devpulse/pkg/ux"
	"github.com/devpulsehq/devpulse/services/insight/synth"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	serveAddr  string
	serveDebug bool

	seedOrgName   string
	seedOrgSize   int
	seedIssues    int
	seedPRs       int
	seedCommits   int
	seedRuns      int
	seedValue     uint64
	seedBatchSize int
	seedYes       bool

	dataTimeframe string

	rootCmd = &cobra.Command{
		Use:   "devpulse",
		Short: "A cli to run and manage the devpulse engineering metrics appliance",
		Long: `Devpulse is a self-hosted engineering metrics appliance. It keeps
				pull-request, issue, commit and workflow-run records in a local
				embedded store and serves trend, DORA and dashboard reports over
				an HTTP API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}

			// Load configuration; the default file is created on first run.
			if configPath != "" {
				if _, err := config.LoadPath(configPath); err != nil {
					log.Fatalf("Error loading config %s: %v", configPath, err)
				}
			} else {
				if _, err := config.Load(); err != nil {
					log.Fatalf("Error loading configuration: %v", err)
				}
			}
		},
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the devpulse metrics API server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Synthetic Data ---
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Replace the store contents with a synthetic organization",
		Long: `Seed generates a deterministic synthetic engineering organization:
				teams, repositories, issues, pull requests, commits and workflow
				runs. Existing records are cleared first. Pass --seed to reproduce
				a previous dataset.`,
		Run: runSeed, // Defined in cmd_seed.go
	}

	// --- Data Management ---
	dataCmd = &cobra.Command{
		Use:   "data",
		Short: "Manage the local metrics store",
	}
	dataResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "DANGER: Deletes every record in the local metrics store",
		Run:   runDataReset, // Defined in cmd_data.go
	}
	dataExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write a report snapshot to InfluxDB",
		Run:   runDataExport, // Defined in cmd_data.go
	}
	dataBackupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Upload a full store backup to Google Cloud Storage (GCS)",
		Run:   runDataBackup, // Defined in cmd_data.go
	}
)

// init runs when the Go program starts
func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the devpulse config file (default ~/.devpulse/devpulse.yaml)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")

	// Server
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (overrides server.addr from the config file)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode and request logging")

	// Synthetic data
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedOrgName, "org", synth.DefaultOrgName, "Organization name for generated records")
	seedCmd.Flags().IntVar(&seedOrgSize, "org-size", synth.DefaultOrgSize, "Number of developers across all teams")
	seedCmd.Flags().IntVar(&seedIssues, "issues", synth.DefaultIssuesPerRepo, "Issues to generate per repository")
	seedCmd.Flags().IntVar(&seedPRs, "prs", synth.DefaultPRsPerRepo, "Pull requests to generate per repository")
	seedCmd.Flags().IntVar(&seedCommits, "commits", synth.DefaultCommitsPerRepo, "Commits to generate per repository")
	seedCmd.Flags().IntVar(&seedRuns, "runs", synth.DefaultRunsPerRepo, "Workflow runs to generate per repository")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 0, "Random seed for a reproducible dataset (0 picks one)")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch", synth.DefaultBatchSize, "Insert batch size")
	seedCmd.Flags().BoolVar(&seedYes, "yes", false, "Skip the interactive confirmation")

	// Data management
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataResetCmd)
	dataResetCmd.Flags().Bool("force", false, "Required to confirm the deletion of all records.")
	dataCmd.AddCommand(dataExportCmd)
	dataExportCmd.Flags().StringVar(&dataTimeframe, "timeframe", "",
		"Reporting window: 2w, 4w, 30d or 90d (default 30d)")
	dataCmd.AddCommand(dataBackupCmd)
}
