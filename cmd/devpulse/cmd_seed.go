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
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/devpulsehq/devpulse/cmd/devpulse/config"
	"github.com/devpulsehq/devpulse/pkg/ux"
	"github.com/devpulsehq/devpulse/services/insight/store"
	"github.com/devpulsehq/devpulse/services/insight/synth"
)

func runSeed(cmd *cobra.Command, args []string) {
	cfg := config.Global

	genCfg := synth.DefaultConfig()
	applySeedConfig(&genCfg, cfg.Seed)
	applySeedFlags(&genCfg, cmd)

	if !seedYes && stdinIsTerminal() && ux.GetPersonality().Level != ux.PersonalityMachine {
		ok, err := confirmSeedPlan(&genCfg)
		if err != nil {
			log.Fatalf("Seed prompt failed: %v", err)
		}
		if !ok {
			fmt.Println("Aborted.")
			return
		}
	}

	db, st := openStore(cfg)
	defer closeStore(db)

	summary, err := runGeneration(st, genCfg)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	printSeedSummary(summary)
}

// applySeedConfig overlays non-zero values from the config file onto
// the generator defaults.
func applySeedConfig(genCfg *synth.Config, seed config.SeedConfig) {
	if seed.OrgSize > 0 {
		genCfg.OrgSize = seed.OrgSize
	}
	if seed.IssuesPerRepo > 0 {
		genCfg.IssuesPerRepo = seed.IssuesPerRepo
	}
	if seed.PRsPerRepo > 0 {
		genCfg.PRsPerRepo = seed.PRsPerRepo
	}
	if seed.CommitsPerRepo > 0 {
		genCfg.CommitsPerRepo = seed.CommitsPerRepo
	}
	if seed.RunsPerRepo > 0 {
		genCfg.RunsPerRepo = seed.RunsPerRepo
	}
	if seed.BatchSize > 0 {
		genCfg.BatchSize = seed.BatchSize
	}
}

// applySeedFlags overlays flags the user actually set, so flags beat
// the config file and the config file beats the built-in defaults.
func applySeedFlags(genCfg *synth.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("org") {
		genCfg.OrgName = seedOrgName
	}
	if flags.Changed("org-size") {
		genCfg.OrgSize = seedOrgSize
	}
	if flags.Changed("issues") {
		genCfg.IssuesPerRepo = seedIssues
	}
	if flags.Changed("prs") {
		genCfg.PRsPerRepo = seedPRs
	}
	if flags.Changed("commits") {
		genCfg.CommitsPerRepo = seedCommits
	}
	if flags.Changed("runs") {
		genCfg.RunsPerRepo = seedRuns
	}
	if flags.Changed("batch") {
		genCfg.BatchSize = seedBatchSize
	}
	genCfg.Seed = seedValue
}

// confirmSeedPlan shows an interactive form with the generation plan.
// The user can adjust the organization before confirming. Returns
// false when the user cancels.
func confirmSeedPlan(genCfg *synth.Config) (bool, error) {
	orgSize := strconv.Itoa(genCfg.OrgSize)
	proceed := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Organization name").
				Value(&genCfg.OrgName),
			huh.NewInput().
				Title("Developers across all teams").
				Value(&orgSize).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Replace all existing records with a fresh dataset?").
				Affirmative("Seed it").
				Negative("Cancel").
				Value(&proceed),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}

	if n, err := strconv.Atoi(strings.TrimSpace(orgSize)); err == nil {
		genCfg.OrgSize = n
	}
	return proceed, nil
}

// runGeneration runs the generator, with a live progress bar when the
// terminal supports one.
func runGeneration(st store.Store, genCfg synth.Config) (*synth.Summary, error) {
	if stdoutIsTerminal() && ux.ShouldShowProgress() {
		return runGenerationTUI(st, genCfg)
	}

	gen, err := synth.New(st, genCfg)
	if err != nil {
		return nil, err
	}
	return gen.Run(context.Background())
}

// seedProgressMsg carries one generator progress event into the UI.
type seedProgressMsg synth.Progress

// seedDoneMsg carries the final result into the UI.
type seedDoneMsg struct {
	summary *synth.Summary
	err     error
}

// seedModel renders a single progress bar that follows the generator
// through its stages.
type seedModel struct {
	bar      progress.Model
	cancel   context.CancelFunc
	stage    string
	done     int
	total    int
	finished bool
	summary  *synth.Summary
	err      error
}

// Init initializes the bubbletea model.
func (m seedModel) Init() tea.Cmd {
	return nil
}

// Update handles progress events and cancellation.
func (m seedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// Cancel the generator; the done message follows once it
			// unwinds.
			m.cancel()
			return m, nil
		}

	case seedProgressMsg:
		m.stage = msg.Stage
		m.done = msg.Done
		m.total = msg.Total
		return m, nil

	case seedDoneMsg:
		m.finished = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// View renders the stage name and progress bar.
func (m seedModel) View() string {
	if m.finished {
		return ""
	}
	if m.stage == "" {
		return "\n  preparing...\n"
	}

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	return fmt.Sprintf("\n  %-12s %s %d/%d\n", m.stage, m.bar.ViewAs(pct), m.done, m.total)
}

func runGenerationTUI(st store.Store, genCfg synth.Config) (*synth.Summary, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := seedModel{
		bar:    progress.New(progress.WithDefaultGradient()),
		cancel: cancel,
	}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))

	genCfg.OnProgress = func(pr synth.Progress) {
		p.Send(seedProgressMsg(pr))
	}
	// The bar owns the terminal; route stage logs nowhere.
	genCfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	gen, err := synth.New(st, genCfg)
	if err != nil {
		return nil, err
	}

	go func() {
		summary, err := gen.Run(ctx)
		p.Send(seedDoneMsg{summary: summary, err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	// p.Run hands back the final model as a tea.Model; anything other
	// than a seedModel here means the program wiring changed.
	result, ok := finalModel.(seedModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	return result.summary, result.err
}

func printSeedSummary(s *synth.Summary) {
	ux.Title("Seed complete")
	ux.Counts(
		"teams", s.Teams,
		"repos", s.Repositories,
		"issues", s.Issues,
		"prs", s.PullRequests,
		"commits", s.Commits,
		"runs", s.WorkflowRuns,
	)
	ux.Info(ux.KeyValue("cleared", s.Cleared))
	ux.Info(ux.KeyValue("seed", s.Seed))
	ux.Info(ux.KeyValue("elapsed", s.Elapsed.Round(time.Millisecond)))
	ux.Success(fmt.Sprintf("Dataset ready; rerun with --seed %d to reproduce it", s.Seed))
}

// stdinIsTerminal reports whether stdin is attached to a terminal.
// Piped input and CI runs skip the interactive prompts.
func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// stdoutIsTerminal reports whether stdout is attached to a terminal.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
