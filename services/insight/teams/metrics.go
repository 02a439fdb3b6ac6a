// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package teams

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for mapping lifecycle and coverage.
var (
	mappingRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devpulse_team_mapping_rebuilds_total",
		Help: "Total team mapping rebuilds from the roster source",
	})

	coverageRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devpulse_team_mapping_coverage_rebuilds_total",
		Help: "Rebuilds triggered by an augment coverage gap",
	})

	mappingSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devpulse_team_mapping_authors",
		Help: "Authors in the current team mapping",
	})

	unmappedRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devpulse_team_augment_unmapped_ratio",
		Help:    "Fraction of distinct authors left unmapped per augment call",
		Buckets: []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

func observeCoverage(c Coverage) {
	if c.DistinctAuthors == 0 {
		return
	}
	unmappedRatio.Observe(float64(c.UnmappedAuthors) / float64(c.DistinctAuthors))
}
