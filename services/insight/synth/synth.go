// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synth generates a full synthetic engineering organization:
// teams, repositories, issues, pull requests, commits and workflow
// runs, with per-developer behavior profiles so the derived metrics
// show realistic variety instead of uniform noise.
//
// Generation is a staged pipeline with explicit identifier handoff:
//
//	characters → teams → repositories → issues → pull requests →
//	commits → workflow runs
//
// Records are written through the record store in fixed-size batches.
// The whole run is reproducible from a seed: the same seed yields the
// same per-kind record counts and the same team sizes.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/store"
)

// Defaults mirror the simulated organization: three repositories,
// five hundred developers, one year of history.
const (
	DefaultOrgName        = "mock-org"
	DefaultOrgSize        = 500
	DefaultIssuesPerRepo  = 1000
	DefaultPRsPerRepo     = 3000
	DefaultCommitsPerRepo = 5000
	DefaultRunsPerRepo    = 2500
	DefaultBatchSize      = 500
	DefaultSpanDays       = 365
)

// minOrgSize keeps every team at or above the minimum team size.
var minOrgSize = len(teamSpecs) * minTeamSize

// Progress is one pipeline progress event, emitted after every batch
// flush and at the end of every stage.
type Progress struct {
	// Stage names the pipeline stage ("teams", "issues", ...).
	Stage string `json:"stage"`

	// Done and Total count records written in this stage.
	Done  int `json:"done"`
	Total int `json:"total"`
}

// ProgressFunc receives progress events. It is called from the
// generator goroutine and must not block for long.
type ProgressFunc func(Progress)

// Config controls one generation run.
type Config struct {
	// OrgName owns the repositories; record repo fields are
	// "<OrgName>/<repo>".
	OrgName string

	// OrgSize is the number of developers across all teams.
	OrgSize int

	// Per-repo record volumes.
	IssuesPerRepo  int
	PRsPerRepo     int
	CommitsPerRepo int
	RunsPerRepo    int

	// BatchSize is the insert batch size.
	BatchSize int

	// Start and End bound the simulated history. Zero values default
	// to the last DefaultSpanDays days.
	Start time.Time
	End   time.Time

	// Seed makes the run reproducible. Zero draws a random seed,
	// reported in the Summary.
	Seed uint64

	// Logger receives stage logs. Nil uses slog.Default.
	Logger *slog.Logger

	// OnProgress, when set, receives batch-level progress events.
	OnProgress ProgressFunc
}

// DefaultConfig returns the conventional volumes over the last year.
func DefaultConfig() Config {
	end := time.Now().UTC()
	return Config{
		OrgName:        DefaultOrgName,
		OrgSize:        DefaultOrgSize,
		IssuesPerRepo:  DefaultIssuesPerRepo,
		PRsPerRepo:     DefaultPRsPerRepo,
		CommitsPerRepo: DefaultCommitsPerRepo,
		RunsPerRepo:    DefaultRunsPerRepo,
		BatchSize:      DefaultBatchSize,
		Start:          end.AddDate(0, 0, -DefaultSpanDays),
		End:            end,
	}
}

// Validate reports the first configuration problem.
func (c *Config) Validate() error {
	if c.OrgName == "" {
		return errors.New("org name must not be empty")
	}
	if c.OrgSize < minOrgSize {
		return fmt.Errorf("org size %d below minimum %d (%d teams of at least %d)",
			c.OrgSize, minOrgSize, len(teamSpecs), minTeamSize)
	}
	if c.IssuesPerRepo < 0 || c.PRsPerRepo < 0 || c.CommitsPerRepo < 0 || c.RunsPerRepo < 0 {
		return errors.New("per-repo volumes must not be negative")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if !c.Start.Before(c.End) {
		return fmt.Errorf("start %s must precede end %s", c.Start, c.End)
	}
	return nil
}

// Summary describes a completed generation run.
type Summary struct {
	// Seed reproduces the run.
	Seed uint64 `json:"seed"`

	// Cleared counts records removed before regeneration.
	Cleared int `json:"cleared"`

	// Per-kind record counts.
	Teams        int `json:"teams"`
	Repositories int `json:"repositories"`
	Issues       int `json:"issues"`
	PullRequests int `json:"pull_requests"`
	Commits      int `json:"commits"`
	WorkflowRuns int `json:"workflow_runs"`

	// TeamSizes maps team name to member count; the values sum to
	// the configured org size.
	TeamSizes map[string]int `json:"team_sizes"`

	// Elapsed is the wall-clock run time.
	Elapsed time.Duration `json:"elapsed"`
}

// Generator runs the staged pipeline against a record store.
type Generator struct {
	store store.Store
	cfg   Config
	log   *slog.Logger
	s     *sampler
}

// New validates the config and prepares a generator. A zero seed is
// replaced with a random one so the run stays reproducible after the
// fact.
func New(st store.Store, cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
		if cfg.Seed == 0 {
			cfg.Seed = 1
		}
	}
	return &Generator{
		store: st,
		cfg:   cfg,
		log:   cfg.Logger.With(slog.String("component", "synth")),
		s:     newSampler(cfg.Seed),
	}, nil
}

// Run clears all stored records and regenerates the organization.
//
// Description:
//
//	The run is restartable, not resumable: cancellation or a failed
//	batch insert aborts between batches and a later run starts from
//	a full clear again.
//
// Inputs:
//   - ctx: cancellation is observed at batch boundaries.
//
// Outputs:
//   - *Summary: per-kind counts and the effective seed.
//   - error: wrapped store or cancellation error; the first failed
//     batch insert is fatal to the run.
func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	g.log.Info("starting data generation",
		slog.Uint64("seed", g.cfg.Seed),
		slog.Int("org_size", g.cfg.OrgSize),
		slog.Time("range_start", g.cfg.Start),
		slog.Time("range_end", g.cfg.End))

	cleared, err := g.clear(ctx)
	if err != nil {
		return nil, err
	}

	st := newOrgState(g.cfg, g.s)
	summary := &Summary{Seed: g.cfg.Seed, Cleared: cleared, TeamSizes: st.teamSizes}

	stages := []struct {
		name string
		kind record.Kind
		run  func(context.Context, *orgState, *batcher) error
	}{
		{"teams", record.KindTeam, g.generateTeams},
		{"repositories", record.KindRepository, g.generateRepositories},
		{"issues", record.KindIssue, g.generateIssues},
		{"pull_requests", record.KindPullRequest, g.generatePullRequests},
		{"commits", record.KindCommit, g.generateCommits},
		{"workflow_runs", record.KindWorkflowRun, g.generateWorkflowRuns},
	}
	for _, stage := range stages {
		b := g.newBatcher(stage.name, stage.kind, g.stageTotal(stage.kind))
		if err := stage.run(ctx, st, b); err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.name, err)
		}
		if err := b.finish(ctx); err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage.name, err)
		}
		g.log.Info("stage complete", slog.String("stage", stage.name), slog.Int("records", b.written))
		switch stage.kind {
		case record.KindTeam:
			summary.Teams = b.written
		case record.KindRepository:
			summary.Repositories = b.written
		case record.KindIssue:
			summary.Issues = b.written
		case record.KindPullRequest:
			summary.PullRequests = b.written
		case record.KindCommit:
			summary.Commits = b.written
		case record.KindWorkflowRun:
			summary.WorkflowRuns = b.written
		}
	}

	summary.Elapsed = time.Since(started)
	g.log.Info("data generation complete",
		slog.Int("issues", summary.Issues),
		slog.Int("pull_requests", summary.PullRequests),
		slog.Int("commits", summary.Commits),
		slog.Int("workflow_runs", summary.WorkflowRuns),
		slog.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// stageTotal is the expected record count for a kind, for progress
// reporting.
func (g *Generator) stageTotal(kind record.Kind) int {
	switch kind {
	case record.KindTeam:
		return len(teamSpecs)
	case record.KindRepository:
		return len(repoNames)
	case record.KindIssue:
		return g.cfg.IssuesPerRepo * len(repoNames)
	case record.KindPullRequest:
		return g.cfg.PRsPerRepo * len(repoNames)
	case record.KindCommit:
		return g.cfg.CommitsPerRepo * len(repoNames)
	case record.KindWorkflowRun:
		return g.cfg.RunsPerRepo * len(repoNames)
	}
	return 0
}

// clear drops every stored record of every kind so regeneration never
// collides with stale identities.
func (g *Generator) clear(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range record.Kinds() {
		n, err := g.store.DeleteAll(ctx, kind)
		if err != nil {
			return total, fmt.Errorf("clear %s: %w", kind, err)
		}
		total += n
	}
	g.log.Info("cleared existing records", slog.Int("records", total))
	return total, nil
}

// =============================================================================
// Batch machinery
// =============================================================================

// batcher accumulates one stage's records and flushes them in
// BatchSize chunks. Cancellation is checked per flush, so a cancelled
// run stops at a batch boundary.
type batcher struct {
	g       *Generator
	stage   string
	kind    record.Kind
	total   int
	buf     []record.Record
	written int
}

func (g *Generator) newBatcher(stage string, kind record.Kind, total int) *batcher {
	return &batcher{
		g:     g,
		stage: stage,
		kind:  kind,
		total: total,
		buf:   make([]record.Record, 0, g.cfg.BatchSize),
	}
}

func (b *batcher) add(ctx context.Context, rec record.Record) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= b.g.cfg.BatchSize {
		return b.flush(ctx)
	}
	return nil
}

// finish flushes the remainder batch.
func (b *batcher) finish(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush(ctx)
}

func (b *batcher) flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation cancelled: %w", err)
	}
	if err := b.g.store.UpsertBatch(ctx, b.kind, b.buf); err != nil {
		return fmt.Errorf("insert %s batch: %w", b.kind, err)
	}
	b.written += len(b.buf)
	b.buf = b.buf[:0]
	if b.g.cfg.OnProgress != nil {
		b.g.cfg.OnProgress(Progress{Stage: b.stage, Done: b.written, Total: b.total})
	}
	return nil
}
