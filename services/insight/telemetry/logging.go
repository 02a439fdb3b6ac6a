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
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns the logger with trace_id and span_id fields
// taken from the active span, so log lines join up with traces in
// Grafana/Loki.
//
// Description:
//
//	When ctx carries no valid span context the logger comes back
//	unchanged, which makes the call safe on paths that only
//	sometimes run under a span (CLI versus server).
//
// Inputs:
//
//	ctx - May be nil or span-free.
//	logger - Base logger; nil falls back to slog.Default().
//
// Example:
//
//	logger := telemetry.LoggerWithTrace(ctx, r.logger)
//	logger.Info("Seed run complete", "run_id", runID)
//
// Thread Safety: Safe for concurrent use.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

// LoggerWithSession extends LoggerWithTrace with a session_id field,
// for long-lived connections such as the seed progress websocket where
// one session outlives the request span.
func LoggerWithSession(ctx context.Context, logger *slog.Logger, sessionID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(
		slog.String("session_id", sessionID),
	)
}
