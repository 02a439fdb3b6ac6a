// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the instruments the DevPulse insight service records.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for HTTP requests,
//	report builds, and synthetic seed runs. All metrics use the
//	"devpulse_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts requests served, by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records request latency in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests gauges requests currently in flight.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Report Metrics ---

	// ReportBuildsTotal counts report builds by report type and status.
	ReportBuildsTotal metric.Int64Counter

	// ReportBuildDuration records report build duration in seconds,
	// including the store fetches that feed the build.
	ReportBuildDuration metric.Float64Histogram

	// --- Seed Metrics ---

	// SeedRunsTotal counts synthetic data generation runs by status.
	SeedRunsTotal metric.Int64Counter

	// SeedRunDuration records end-to-end seed run duration in seconds.
	SeedRunDuration metric.Float64Histogram

	// SeedRecordsTotal counts records written by seed runs, by record kind.
	SeedRecordsTotal metric.Int64Counter

	// SeedActive reports whether a seed run is in progress (0 or 1).
	SeedActive metric.Int64ObservableGauge

	// --- Error Metrics ---

	// ErrorsTotal counts errors by type and originating component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics builds the instrument set every server component records into.
//
// Description:
//
//	Registers every instrument against the supplied meter. Fails fast on
//	the first instrument that cannot be created.
//
// Inputs:
//
//	meter - The OTel meter to register instruments with.
//
// Outputs:
//
//	*Metrics - Ready-to-use metrics container.
//	error - Non-nil if any instrument registration fails.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("devpulse"))
//	if err != nil {
//	    return err
//	}
//	metrics.HTTPRequestsTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"devpulse_http_requests_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"devpulse_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"devpulse_http_active_requests",
		metric.WithDescription("HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Report Metrics ---
	m.ReportBuildsTotal, err = meter.Int64Counter(
		"devpulse_report_builds_total",
		metric.WithDescription("Total report builds by type and status"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create report_builds_total: %w", err)
	}

	m.ReportBuildDuration, err = meter.Float64Histogram(
		"devpulse_report_build_duration_seconds",
		metric.WithDescription("Report build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("create report_build_duration: %w", err)
	}

	// --- Seed Metrics ---
	m.SeedRunsTotal, err = meter.Int64Counter(
		"devpulse_seed_runs_total",
		metric.WithDescription("Total synthetic data generation runs by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create seed_runs_total: %w", err)
	}

	m.SeedRunDuration, err = meter.Float64Histogram(
		"devpulse_seed_run_duration_seconds",
		metric.WithDescription("Seed run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, fmt.Errorf("create seed_run_duration: %w", err)
	}

	m.SeedRecordsTotal, err = meter.Int64Counter(
		"devpulse_seed_records_total",
		metric.WithDescription("Records written by seed runs, by kind"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create seed_records_total: %w", err)
	}

	// Note: SeedActive requires a callback registration, handled separately

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"devpulse_errors_total",
		metric.WithDescription("Errors by type and originating component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterSeedActive registers a callback for the seed-activity gauge.
//
// Description:
//
//	Sets up an observable gauge that reports whether a seed run is in
//	progress. The callback is invoked each time metrics are scraped.
//
// Inputs:
//
//	meter - Meter the gauge registers against.
//	stateFunc - A function that returns 1 while a seed run is active, else 0.
//
// Outputs:
//
//	metric.Registration - Handle for unregistering the callback.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterSeedActive(meter metric.Meter, stateFunc func() int64) (metric.Registration, error) {
	var err error
	m.SeedActive, err = meter.Int64ObservableGauge(
		"devpulse_seed_active",
		metric.WithDescription("Whether a synthetic data generation run is in progress"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create seed_active: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.SeedActive, stateFunc())
		return nil
	}, m.SeedActive)
}
