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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/store"
	"github.com/devpulsehq/devpulse/services/insight/synth"
	"github.com/devpulsehq/devpulse/services/insight/teams"
)

func setupSeedTest(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	st := newTestStore(t)
	teamCache := teams.NewCache(func(ctx context.Context) ([]*record.Team, error) {
		return store.Teams(ctx, st, nil)
	}, nil)
	handlers := NewHandlers(st, teamCache, nil)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return handlers, router
}

// forceRunning flips the runner into the running state without starting
// a generator, for deterministic conflict tests.
func forceRunning(h *Handlers, running bool) {
	h.seed.mu.Lock()
	h.seed.running = running
	h.seed.mu.Unlock()
}

func TestSeedHub_PublishSubscribe(t *testing.T) {
	hub := newSeedHub()
	events, cancel := hub.subscribe()

	hub.publish(SeedEvent{Action: ActionProgress, RunID: "r1", Stage: "issues", Done: 5, Total: 10})
	hub.publish(SeedEvent{Action: ActionComplete, RunID: "r1"})

	first := <-events
	if first.Action != ActionProgress || first.Stage != "issues" || first.Done != 5 {
		t.Errorf("unexpected first event: %+v", first)
	}

	second := <-events
	if second.Action != ActionComplete {
		t.Errorf("unexpected second event: %+v", second)
	}

	cancel()
	// Publishing after cancel must not panic or block.
	hub.publish(SeedEvent{Action: ActionProgress, RunID: "r1"})
}

func TestSeedHub_DropsWhenFull(t *testing.T) {
	hub := newSeedHub()
	events, cancel := hub.subscribe()
	defer cancel()

	// Overfill without draining; the publisher must never block.
	for i := 0; i < eventBuffer+8; i++ {
		hub.publish(SeedEvent{Action: ActionProgress, Done: i})
	}

	if len(events) != eventBuffer {
		t.Errorf("expected %d buffered events, got %d", eventBuffer, len(events))
	}
}

func TestSeedRunner_RejectsConcurrentRuns(t *testing.T) {
	handlers, _ := setupSeedTest(t)
	forceRunning(handlers, true)

	_, err := handlers.seed.start(SeedRequest{})
	if !errors.Is(err, ErrSeedRunning) {
		t.Errorf("expected ErrSeedRunning, got %v", err)
	}
}

func TestSeedRunner_ProgressUpdatesStatus(t *testing.T) {
	handlers, _ := setupSeedTest(t)

	handlers.seed.progress("r1", synth.Progress{Stage: "commits", Done: 40, Total: 120})

	status := handlers.seed.snapshot()
	if status.Stage != "commits" || status.Done != 40 || status.Total != 120 {
		t.Errorf("unexpected status after progress: %+v", status)
	}
}

func TestHandlers_SeedActive(t *testing.T) {
	handlers, _ := setupSeedTest(t)

	if got := handlers.SeedActive(); got != 0 {
		t.Errorf("expected 0 while idle, got %d", got)
	}

	forceRunning(handlers, true)
	if got := handlers.SeedActive(); got != 1 {
		t.Errorf("expected 1 while running, got %d", got)
	}
}

func TestHandleSeed_Conflict(t *testing.T) {
	handlers, router := setupSeedTest(t)
	forceRunning(handlers, true)

	req, _ := http.NewRequest("POST", "/v1/devpulse/seed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if errResp.Code != "SEED_RUNNING" {
		t.Errorf("expected code SEED_RUNNING, got %q", errResp.Code)
	}
}

func TestHandleSeed_InvalidBody(t *testing.T) {
	_, router := setupSeedTest(t)

	req, _ := http.NewRequest("POST", "/v1/devpulse/seed",
		bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if errResp.Code != "INVALID_REQUEST" {
		t.Errorf("expected code INVALID_REQUEST, got %q", errResp.Code)
	}
}

func TestHandleSeedStatus_Idle(t *testing.T) {
	_, router := setupSeedTest(t)

	req, _ := http.NewRequest("GET", "/v1/devpulse/seed/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var status SeedStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if status.State != SeedStateIdle {
		t.Errorf("expected state %q, got %q", SeedStateIdle, status.State)
	}
}

// TestHandleSeed_RunsToCompletion drives a small generation run through
// the HTTP surface and the event hub end to end.
func TestHandleSeed_RunsToCompletion(t *testing.T) {
	handlers, router := setupSeedTest(t)

	events, cancel := handlers.seed.hub.subscribe()
	defer cancel()

	body := `{"issues_per_repo": 1, "prs_per_repo": 1, "commits_per_repo": 1, "runs_per_repo": 1, "seed": 42}`
	req, _ := http.NewRequest("POST", "/v1/devpulse/seed", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}

	var accepted SeedAcceptedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if accepted.RunID == "" || accepted.State != SeedStateRunning {
		t.Fatalf("unexpected accept payload: %+v", accepted)
	}

	// Drain the hub until the terminal event arrives.
	var progressSeen bool
	deadline := time.After(30 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			switch ev.Action {
			case ActionProgress:
				progressSeen = true
			case ActionComplete:
				if ev.RunID != accepted.RunID {
					t.Errorf("complete event for run %q, want %q", ev.RunID, accepted.RunID)
				}
				if ev.Summary == nil {
					t.Error("expected a summary on the complete event")
				}
				done = true
			case ActionError:
				t.Fatalf("seed run failed: %s", ev.Error)
			}
		case <-deadline:
			t.Fatal("timed out waiting for seed completion")
		}
	}

	if !progressSeen {
		t.Error("expected at least one progress event")
	}

	statusReq, _ := http.NewRequest("GET", "/v1/devpulse/seed/status", nil)
	sw := httptest.NewRecorder()
	router.ServeHTTP(sw, statusReq)

	var status SeedStatusResponse
	if err := json.Unmarshal(sw.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}

	if status.State != SeedStateDone {
		t.Fatalf("expected state %q, got %q (error: %s)", SeedStateDone, status.State, status.Error)
	}
	if status.RunID != accepted.RunID {
		t.Errorf("status for run %q, want %q", status.RunID, accepted.RunID)
	}
	if status.Summary == nil || status.Summary.Teams == 0 {
		t.Errorf("expected a summary with teams, got %+v", status.Summary)
	}
	if status.StartedAt == nil || status.FinishedAt == nil {
		t.Error("expected run timestamps to be set")
	}
}
