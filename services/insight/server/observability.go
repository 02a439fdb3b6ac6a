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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/devpulsehq/devpulse/services/insight/synth"
)

const seedTracerName = "devpulse.insight.seed"

// Tracer wraps OpenTelemetry span creation for seed runs. When
// disabled it hands out noop spans, so callers never branch on it.
//
// All methods are safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a seed-run tracer. A nil logger falls back to
// slog.Default().
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(seedTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartRun opens the span covering one generation run. The caller must
// close it through EndRun.
func (t *Tracer) StartRun(ctx context.Context, runID string, cfg synth.Config) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}

	ctx, span := t.tracer.Start(ctx, "seed.run",
		trace.WithAttributes(
			attribute.String("seed.run_id", runID),
			attribute.String("seed.org_name", cfg.OrgName),
			attribute.Int("seed.org_size", cfg.OrgSize),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	t.logger.DebugContext(ctx, "starting seed run",
		slog.String("run_id", runID),
		slog.Int("org_size", cfg.OrgSize),
	)

	return ctx, span
}

// EndRun closes a run span with its outcome. The drawn seed lands here
// rather than in StartRun because a zero configured seed is only
// resolved once the generator starts.
func (t *Tracer) EndRun(span trace.Span, summary *synth.Summary, err error) {
	if span == nil {
		return
	}
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetStatus(codes.Ok, "")
	if summary != nil {
		span.SetAttributes(
			attribute.Int64("seed.seed", int64(summary.Seed)),
			attribute.Int("seed.teams", summary.Teams),
			attribute.Int("seed.repositories", summary.Repositories),
			attribute.Int("seed.records", summary.Issues+summary.PullRequests+summary.Commits+summary.WorkflowRuns),
		)
	}
}

// RecordStageDone marks a finished pipeline stage on the run span.
func (t *Tracer) RecordStageDone(ctx context.Context, p synth.Progress) {
	span := trace.SpanFromContext(ctx)
	// SpanFromContext returns a noop span, not nil, when ctx has none.
	if !span.SpanContext().IsValid() {
		return
	}

	span.AddEvent("stage_complete",
		trace.WithAttributes(
			attribute.String("seed.stage", p.Stage),
			attribute.Int("seed.records", p.Total),
		),
	)

	t.logger.DebugContext(ctx, "seed stage complete",
		slog.String("stage", p.Stage),
		slog.Int("records", p.Total),
	)
}
