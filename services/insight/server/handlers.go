// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the computed engineering metrics over a JSON
// HTTP API.
//
// The read endpoints are stateless: each request fetches records from
// the store, aggregates them through the report and dora packages, and
// returns the result. The only mutating surface is the seed trigger,
// which runs the synthetic data generator in the background and
// streams its progress over a websocket.
package server

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/devpulsehq/devpulse/services/insight/dora"
	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/report"
	"github.com/devpulsehq/devpulse/services/insight/store"
	"github.com/devpulsehq/devpulse/services/insight/teams"
	"github.com/devpulsehq/devpulse/services/insight/telemetry"
)

// =============================================================================
// Handlers
// =============================================================================

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	store   store.Store
	teams   *teams.Cache
	metrics *telemetry.Metrics
	logger  *slog.Logger
	seed    *seedRunner
}

// NewHandlers creates handlers over the given store and team cache.
func NewHandlers(st store.Store, teamCache *teams.Cache, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:  st,
		teams:  teamCache,
		logger: logger,
		seed:   newSeedRunner(st, logger),
	}
}

// WithMetrics wires the telemetry metrics into the handlers and the
// seed runner. Without it the handlers serve unmetered.
func (h *Handlers) WithMetrics(m *telemetry.Metrics) *Handlers {
	h.metrics = m
	h.seed.metrics = m
	return h
}

// WithTracing switches seed-run span creation on or off. Disabled
// runs get noop spans.
func (h *Handlers) WithTracing(enabled bool) *Handlers {
	h.seed.tracer = NewTracer(h.logger, enabled)
	return h
}

// SeedActive reports whether a seed run is in flight, for gauge
// registration via telemetry.Metrics.RegisterSeedActive.
func (h *Handlers) SeedActive() int64 {
	return h.seed.active()
}

// getOrCreateRequestID extracts the request ID from the X-Request-ID
// header or generates a new one, and reflects it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// requestLogger builds the per-request logger: request ID, handler
// name, and the trace fields of the active server span.
func requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), slog.Default()).With(
		"request_id", getOrCreateRequestID(c),
		"handler", handler,
	)
}

// observeReport records one report build in the metrics, when wired.
func (h *Handlers) observeReport(c *gin.Context, name string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("report", name),
		attribute.String("status", status))
	ctx := c.Request.Context()
	h.metrics.ReportBuildsTotal.Add(ctx, 1, attrs)
	h.metrics.ReportBuildDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// countError increments the error counter, when wired.
func (h *Handlers) countError(c *gin.Context, errType string) {
	if h.metrics == nil {
		return
	}
	h.metrics.ErrorsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", "server")))
}

// =============================================================================
// Health & Readiness
// =============================================================================

// HandleHealth returns service health status.
//
// GET /devpulse/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady returns service readiness status. The store is probed
// with a cheap index scan; a failing store means not ready.
//
// GET /devpulse/ready
func (h *Handlers) HandleReady(c *gin.Context) {
	if _, err := h.store.DistinctValues(c.Request.Context(), record.KindTeam, "name"); err != nil {
		h.logger.Warn("Readiness probe failed", "error", err)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Ready:  false,
			Reason: "record store unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true})
}

// =============================================================================
// Trend
// =============================================================================

// HandleTrend returns one daily series with its fitted trend.
//
// GET /devpulse/trend?metric=commits&timeframe=30d
//
// Metrics: "commits" (daily commit counts), "prs" (daily merge
// throughput), "issues" (cumulative opened issues), "runs" (daily mean
// runner pickup).
func (h *Handlers) HandleTrend(c *gin.Context) {
	logger := requestLogger(c, "HandleTrend")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_TIMEFRAME",
		})
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	resp := TrendResponse{Timeframe: tf}

	var fetchErr error
	switch metricName := c.DefaultQuery("metric", "commits"); metricName {
	case "commits":
		resp.Metric = metricName
		commits, err := store.Commits(ctx, h.store, nil)
		if err != nil {
			fetchErr = err
			break
		}
		page := report.BuildCommitPage(commits, tf, now)
		resp.Series, resp.Trend = page.DailyCounts, page.CountTrend
	case "prs":
		resp.Metric = metricName
		prs, err := store.PullRequests(ctx, h.store, nil)
		if err != nil {
			fetchErr = err
			break
		}
		page := report.BuildPRPage(prs, tf, now)
		resp.Series, resp.Trend = page.DailyThroughput, page.ThroughputTrend
	case "issues":
		resp.Metric = metricName
		issues, err := store.Issues(ctx, h.store, nil)
		if err != nil {
			fetchErr = err
			break
		}
		page := report.BuildIssuePage(issues, tf, now)
		if page.Backlog != nil {
			resp.Series = make([]report.DailyPoint, 0, len(page.Backlog.Days))
			for _, day := range page.Backlog.Days {
				resp.Series = append(resp.Series, report.DailyPoint{
					Date:  day.Date,
					Value: float64(day.Opened),
				})
			}
			resp.Trend = page.Backlog.OpenedTrend
		}
	case "runs":
		resp.Metric = metricName
		runs, err := store.WorkflowRuns(ctx, h.store, nil)
		if err != nil {
			fetchErr = err
			break
		}
		page := report.BuildRunnerPage(runs, tf, now)
		resp.Series, resp.Trend = page.DailyPickup, page.PickupTrend
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown metric (want commits, prs, issues or runs)",
			Code:  "INVALID_METRIC",
		})
		return
	}

	if fetchErr != nil {
		logger.Error("Failed to fetch records for trend", "metric", resp.Metric, "error", fetchErr)
		h.countError(c, "fetch")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load records",
			Code:  "FETCH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// =============================================================================
// DORA
// =============================================================================

// parsePeriod reads the period query parameter. Empty selects weekly.
func parsePeriod(c *gin.Context) (dora.Period, bool) {
	raw := c.Query("period")
	if raw == "" {
		return dora.PeriodWeek, true
	}
	p := dora.Period(raw)
	return p, p.Valid()
}

// parseKeywords reads the comma-separated keywords parameter. Empty
// falls back to the frequency defaults.
func parseKeywords(c *gin.Context) []string {
	raw := c.Query("keywords")
	if raw == "" {
		return nil
	}
	var keywords []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// HandleDoraFrequency returns deployment frequency from workflow runs.
//
// GET /devpulse/dora/frequency?timeframe=30d&period=week&keywords=deploy,ship
func (h *Handlers) HandleDoraFrequency(c *gin.Context) {
	logger := requestLogger(c, "HandleDoraFrequency")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}
	period, ok := parsePeriod(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown period (want day, week or month)",
			Code:  "INVALID_PERIOD",
		})
		return
	}

	runs, err := store.WorkflowRuns(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch workflow runs", "error", err)
		h.countError(c, "fetch")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load workflow runs",
			Code:  "FETCH_FAILED",
		})
		return
	}

	w := tf.Window(time.Now().UTC())
	var inWindow []*record.WorkflowRun
	for _, run := range runs {
		if run != nil && w.Contains(run.CreatedAt.Time) {
			inWindow = append(inWindow, run)
		}
	}

	freq := dora.ComputeFrequency(inWindow, &dora.Options{
		Keywords: parseKeywords(c),
		Period:   period,
		Since:    w.Since,
		Until:    w.Until,
	})
	c.JSON(http.StatusOK, freq)
}

// HandleDoraLeadTime returns lead time for changes over pull requests
// merged in the window.
//
// GET /devpulse/dora/leadtime?timeframe=30d
func (h *Handlers) HandleDoraLeadTime(c *gin.Context) {
	logger := requestLogger(c, "HandleDoraLeadTime")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}

	prs, err := store.PullRequests(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch pull requests", "error", err)
		h.countError(c, "fetch")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load pull requests",
			Code:  "FETCH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, dora.ComputeLeadTime(mergedInWindow(prs, tf.Window(time.Now().UTC()))))
}

// HandleDoraThroughput returns the PR merge frequency series, grouped
// by team when a mapping is available.
//
// GET /devpulse/dora/throughput?timeframe=30d&period=week
func (h *Handlers) HandleDoraThroughput(c *gin.Context) {
	logger := requestLogger(c, "HandleDoraThroughput")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}
	period, ok := parsePeriod(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown period (want day, week or month)",
			Code:  "INVALID_PERIOD",
		})
		return
	}

	prs, err := store.PullRequests(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch pull requests", "error", err)
		h.countError(c, "fetch")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load pull requests",
			Code:  "FETCH_FAILED",
		})
		return
	}

	// A missing mapping degrades to repository grouping rather than
	// failing the request.
	mapping, err := h.teams.Mapping(c.Request.Context())
	if err != nil {
		logger.Warn("Team mapping unavailable, grouping by repository", "error", err)
		h.countError(c, "teams")
		mapping = nil
	}

	w := tf.Window(time.Now().UTC())
	throughput := dora.MergeThroughput(mergedInWindow(prs, w), mapping, &dora.Options{
		Period: period,
		Since:  w.Since,
		Until:  w.Until,
	})
	c.JSON(http.StatusOK, throughput)
}

// mergedInWindow keeps pull requests whose merge landed in the window.
func mergedInWindow(prs []*record.PullRequest, w report.Window) []*record.PullRequest {
	var merged []*record.PullRequest
	for _, pr := range prs {
		if pr != nil && pr.Merged() && w.Contains(pr.MergedAt.Time) {
			merged = append(merged, pr)
		}
	}
	return merged
}

// =============================================================================
// Reports
// =============================================================================

// HandleReportPulls returns the pull-request dashboard page.
//
// GET /devpulse/reports/pulls?timeframe=30d
func (h *Handlers) HandleReportPulls(c *gin.Context) {
	logger := requestLogger(c, "HandleReportPulls")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}

	start := time.Now()
	prs, err := store.PullRequests(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch pull requests", "error", err)
		h.countError(c, "fetch")
		h.observeReport(c, "pulls", start, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load pull requests",
			Code:  "FETCH_FAILED",
		})
		return
	}

	page := report.BuildPRPage(prs, tf, time.Now().UTC())
	h.observeReport(c, "pulls", start, nil)
	c.JSON(http.StatusOK, page)
}

// HandleReportIssues returns the issue dashboard page.
//
// GET /devpulse/reports/issues?timeframe=30d
func (h *Handlers) HandleReportIssues(c *gin.Context) {
	logger := requestLogger(c, "HandleReportIssues")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}

	start := time.Now()
	issues, err := store.Issues(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch issues", "error", err)
		h.countError(c, "fetch")
		h.observeReport(c, "issues", start, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load issues",
			Code:  "FETCH_FAILED",
		})
		return
	}

	page := report.BuildIssuePage(issues, tf, time.Now().UTC())
	h.observeReport(c, "issues", start, nil)
	c.JSON(http.StatusOK, page)
}

// HandleReportCommits returns the commit-activity dashboard page.
//
// GET /devpulse/reports/commits?timeframe=30d
func (h *Handlers) HandleReportCommits(c *gin.Context) {
	logger := requestLogger(c, "HandleReportCommits")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}

	start := time.Now()
	commits, err := store.Commits(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch commits", "error", err)
		h.countError(c, "fetch")
		h.observeReport(c, "commits", start, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load commits",
			Code:  "FETCH_FAILED",
		})
		return
	}

	page := report.BuildCommitPage(commits, tf, time.Now().UTC())
	h.observeReport(c, "commits", start, nil)
	c.JSON(http.StatusOK, page)
}

// HandleReportRunners returns the runner-performance dashboard page.
//
// GET /devpulse/reports/runners?timeframe=30d
func (h *Handlers) HandleReportRunners(c *gin.Context) {
	logger := requestLogger(c, "HandleReportRunners")

	tf, err := report.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TIMEFRAME"})
		return
	}

	start := time.Now()
	runs, err := store.WorkflowRuns(c.Request.Context(), h.store, nil)
	if err != nil {
		logger.Error("Failed to fetch workflow runs", "error", err)
		h.countError(c, "fetch")
		h.observeReport(c, "runners", start, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load workflow runs",
			Code:  "FETCH_FAILED",
		})
		return
	}

	page := report.BuildRunnerPage(runs, tf, time.Now().UTC())
	h.observeReport(c, "runners", start, nil)
	c.JSON(http.StatusOK, page)
}

// =============================================================================
// Teams
// =============================================================================

// HandleTeams returns the current team rosters and mapping cache
// activity.
//
// GET /devpulse/teams
func (h *Handlers) HandleTeams(c *gin.Context) {
	logger := requestLogger(c, "HandleTeams")

	mapping, err := h.teams.Mapping(c.Request.Context())
	if err != nil {
		logger.Error("Failed to build team mapping", "error", err)
		h.countError(c, "teams")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to load team mapping",
			Code:  "TEAMS_FAILED",
		})
		return
	}

	counts := make(map[string]int)
	for _, team := range mapping {
		counts[team]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]TeamSummary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, TeamSummary{Name: name, Members: counts[name]})
	}

	c.JSON(http.StatusOK, TeamsResponse{
		Teams:   summaries,
		Authors: len(mapping),
		Cache:   h.teams.Stats(),
	})
}
