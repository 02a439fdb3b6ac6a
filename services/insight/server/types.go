// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/devpulsehq/devpulse/services/insight/report"
	"github.com/devpulsehq/devpulse/services/insight/synth"
	"github.com/devpulsehq/devpulse/services/insight/teams"
	"github.com/devpulsehq/devpulse/services/insight/trend"
)

// ServiceVersion is the current version of the insight service.
const ServiceVersion = "0.1.0"

// =============================================================================
// Request Types
// =============================================================================

// SeedRequest configures a synthetic data generation run. Every field
// is optional; zero values fall back to the generator defaults.
type SeedRequest struct {
	// OrgSize is the number of developers across all teams.
	OrgSize int `json:"org_size"`

	// Per-repo record volumes.
	IssuesPerRepo  int `json:"issues_per_repo"`
	PRsPerRepo     int `json:"prs_per_repo"`
	CommitsPerRepo int `json:"commits_per_repo"`
	RunsPerRepo    int `json:"runs_per_repo"`

	// Seed makes the run reproducible. Zero draws a random seed.
	Seed uint64 `json:"seed"`
}

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by the readiness check endpoint.
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse is returned for all error conditions.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// TrendResponse carries one daily series with its fitted trend.
type TrendResponse struct {
	// Metric names the series ("commits", "prs", "issues", "runs").
	Metric string `json:"metric"`

	// Timeframe is the window the series covers.
	Timeframe report.Timeframe `json:"timeframe"`

	// Series is the per-day values, zero-filled where the underlying
	// report does so.
	Series []report.DailyPoint `json:"series"`

	// Trend is the linear fit over the series.
	Trend *trend.Trend `json:"trend"`
}

// TeamSummary is one team with its roster size.
type TeamSummary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// TeamsResponse describes the current author-to-team mapping.
type TeamsResponse struct {
	// Teams lists rosters sorted by name.
	Teams []TeamSummary `json:"teams"`

	// Authors is the number of distinct mapped authors.
	Authors int `json:"authors"`

	// Cache reports mapping cache activity.
	Cache teams.Stats `json:"cache"`
}

// Seed run lifecycle states.
const (
	SeedStateIdle    = "idle"
	SeedStateRunning = "running"
	SeedStateDone    = "done"
	SeedStateFailed  = "failed"
)

// SeedAcceptedResponse acknowledges a started seed run.
type SeedAcceptedResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

// SeedStatusResponse is a snapshot of the seed runner.
type SeedStatusResponse struct {
	// State is one of the SeedState constants.
	State string `json:"state"`

	// RunID identifies the latest run; empty before the first one.
	RunID string `json:"run_id,omitempty"`

	// Stage, Done and Total mirror the latest progress event while a
	// run is active.
	Stage string `json:"stage,omitempty"`
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`

	// Summary is set once a run completes successfully.
	Summary *synth.Summary `json:"summary,omitempty"`

	// Error is set when the latest run failed.
	Error string `json:"error,omitempty"`

	// StartedAt and FinishedAt bound the latest run.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Seed progress stream actions.
const (
	ActionSessionCreated = "session_created"
	ActionStatus         = "status"
	ActionProgress       = "progress"
	ActionComplete       = "complete"
	ActionError          = "error"
)

// SeedEvent is one message on the seed progress stream.
type SeedEvent struct {
	// Action discriminates the payload: "progress", "complete" or
	// "error".
	Action string `json:"action"`

	// RunID identifies the run the event belongs to.
	RunID string `json:"run_id"`

	// Stage, Done and Total carry progress for "progress" events.
	Stage string `json:"stage,omitempty"`
	Done  int    `json:"done,omitempty"`
	Total int    `json:"total,omitempty"`

	// Summary accompanies "complete" events.
	Summary *synth.Summary `json:"summary,omitempty"`

	// Error accompanies "error" events.
	Error string `json:"error,omitempty"`
}
