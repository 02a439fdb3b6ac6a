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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/devpulsehq/devpulse/services/insight/store"
	"github.com/devpulsehq/devpulse/services/insight/synth"
	"github.com/devpulsehq/devpulse/services/insight/telemetry"
)

// ErrSeedRunning reports that a generation run is already in flight.
var ErrSeedRunning = errors.New("seed run already in progress")

// eventBuffer is the per-subscriber channel depth. A subscriber that
// falls behind misses events rather than stalling the generator.
const eventBuffer = 16

// =============================================================================
// Event Hub
// =============================================================================

// seedHub fans seed events out to websocket subscribers.
type seedHub struct {
	mu   sync.Mutex
	subs map[chan SeedEvent]struct{}
}

func newSeedHub() *seedHub {
	return &seedHub{subs: make(map[chan SeedEvent]struct{})}
}

// subscribe registers a listener. The returned cancel releases the
// channel and must be called exactly once.
func (h *seedHub) subscribe() (<-chan SeedEvent, func()) {
	ch := make(chan SeedEvent, eventBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// publish delivers an event to every subscriber without blocking; a
// full subscriber drops it.
func (h *seedHub) publish(ev SeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// =============================================================================
// Seed Runner
// =============================================================================

// seedRunner owns the single in-flight generation run and its status.
type seedRunner struct {
	store   store.Store
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *Tracer
	hub     *seedHub

	mu      sync.Mutex
	running bool
	runCtx  context.Context // span context of the in-flight run
	status  SeedStatusResponse
}

func newSeedRunner(st store.Store, logger *slog.Logger) *seedRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &seedRunner{
		store:  st,
		logger: logger,
		tracer: NewTracer(logger, true),
		hub:    newSeedHub(),
		status: SeedStatusResponse{State: SeedStateIdle},
	}
}

// active reports 1 while a run is in flight, for the gauge callback.
func (r *seedRunner) active() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return 1
	}
	return 0
}

// snapshot returns the current status.
func (r *seedRunner) snapshot() SeedStatusResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// start validates the request and launches a generation run in the
// background. At most one run is in flight at a time.
func (r *seedRunner) start(req SeedRequest) (string, error) {
	cfg := synth.DefaultConfig()
	if req.OrgSize > 0 {
		cfg.OrgSize = req.OrgSize
	}
	if req.IssuesPerRepo > 0 {
		cfg.IssuesPerRepo = req.IssuesPerRepo
	}
	if req.PRsPerRepo > 0 {
		cfg.PRsPerRepo = req.PRsPerRepo
	}
	if req.CommitsPerRepo > 0 {
		cfg.CommitsPerRepo = req.CommitsPerRepo
	}
	if req.RunsPerRepo > 0 {
		cfg.RunsPerRepo = req.RunsPerRepo
	}
	cfg.Seed = req.Seed
	cfg.Logger = r.logger

	runID := uuid.NewString()
	cfg.OnProgress = func(p synth.Progress) {
		r.progress(runID, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return "", ErrSeedRunning
	}

	gen, err := synth.New(r.store, cfg)
	if err != nil {
		return "", err
	}

	started := time.Now().UTC()
	r.running = true
	r.status = SeedStatusResponse{
		State:     SeedStateRunning,
		RunID:     runID,
		StartedAt: &started,
	}

	go r.run(gen, runID, cfg)
	return runID, nil
}

// progress records the latest stage counts and fans the event out. A
// stage's final batch also lands on the run span.
func (r *seedRunner) progress(runID string, p synth.Progress) {
	r.mu.Lock()
	r.status.Stage, r.status.Done, r.status.Total = p.Stage, p.Done, p.Total
	ctx := r.runCtx
	r.mu.Unlock()

	if ctx != nil && p.Total > 0 && p.Done >= p.Total {
		r.tracer.RecordStageDone(ctx, p)
	}

	r.hub.publish(SeedEvent{
		Action: ActionProgress,
		RunID:  runID,
		Stage:  p.Stage,
		Done:   p.Done,
		Total:  p.Total,
	})
}

// run executes the generator and publishes the terminal event. The run
// is owned by the process, not by the request that started it, so its
// span is rooted in a background context.
func (r *seedRunner) run(gen *synth.Generator, runID string, cfg synth.Config) {
	ctx, span := r.tracer.StartRun(context.Background(), runID, cfg)
	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()

	start := time.Now()
	summary, err := gen.Run(ctx)
	finished := time.Now().UTC()

	r.mu.Lock()
	r.running = false
	r.runCtx = nil
	r.status.FinishedAt = &finished
	r.status.Stage, r.status.Done, r.status.Total = "", 0, 0
	if err != nil {
		r.status.State = SeedStateFailed
		r.status.Error = err.Error()
	} else {
		r.status.State = SeedStateDone
		r.status.Summary = summary
	}
	r.mu.Unlock()

	r.tracer.EndRun(span, summary, err)
	r.observeRun(summary, err, time.Since(start))

	logger := telemetry.LoggerWithTrace(ctx, r.logger)
	if err != nil {
		logger.Error("Seed run failed", "run_id", runID, "error", err)
		r.hub.publish(SeedEvent{Action: ActionError, RunID: runID, Error: err.Error()})
		return
	}
	logger.Info("Seed run complete", "run_id", runID)
	r.hub.publish(SeedEvent{Action: ActionComplete, RunID: runID, Summary: summary})
}

// observeRun records run outcome metrics, when wired.
func (r *seedRunner) observeRun(summary *synth.Summary, err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	ctx := context.Background()
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	r.metrics.SeedRunsTotal.Add(ctx, 1, attrs)
	r.metrics.SeedRunDuration.Record(ctx, elapsed.Seconds(), attrs)

	if summary == nil {
		return
	}
	for kind, n := range map[string]int{
		"team":         summary.Teams,
		"repository":   summary.Repositories,
		"issue":        summary.Issues,
		"pull_request": summary.PullRequests,
		"commit":       summary.Commits,
		"workflow_run": summary.WorkflowRuns,
	} {
		r.metrics.SeedRecordsTotal.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// =============================================================================
// Handlers
// =============================================================================

// HandleSeed starts a synthetic data generation run.
//
// POST /devpulse/seed
//
// The request body is optional; omitted fields use generator defaults.
// Returns 202 with the run ID, or 409 while a run is active.
func (h *Handlers) HandleSeed(c *gin.Context) {
	logger := requestLogger(c, "HandleSeed")

	var req SeedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	runID, err := h.seed.start(req)
	if err != nil {
		if errors.Is(err, ErrSeedRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: "A seed run is already in progress",
				Code:  "SEED_RUNNING",
			})
			return
		}
		logger.Error("Failed to start seed run", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid generator configuration",
			Code:    "INVALID_CONFIG",
			Details: err.Error(),
		})
		return
	}

	logger.Info("Seed run started", "run_id", runID)
	c.JSON(http.StatusAccepted, SeedAcceptedResponse{RunID: runID, State: SeedStateRunning})
}

// HandleSeedStatus reports the latest seed run state.
//
// GET /devpulse/seed/status
func (h *Handlers) HandleSeedStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.seed.snapshot())
}
