// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// Prometheus metrics for record store operations.
var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpulse_store_operations_total",
		Help: "Record store operations by operation and record kind",
	}, []string{"op", "kind"})

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devpulse_store_operation_duration_seconds",
		Help:    "Record store operation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	recordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devpulse_store_records_written_total",
		Help: "Records written through UpsertBatch by kind",
	}, []string{"kind"})
)

// observeOp records one completed operation; call it deferred with the
// start time.
func observeOp(op string, kind record.Kind, start time.Time) {
	opsTotal.WithLabelValues(op, string(kind)).Inc()
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
