// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/trend"
)

func mar(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

// TestBuildPRPage verifies totals, rates, size bins and throughput over
// a mixed two-week window.
func TestBuildPRPage(t *testing.T) {
	prs := []*record.PullRequest{
		{PRID: 1, CreatedAt: record.NewTime(mar(18, 9)), MergedAt: record.TimePtr(mar(20, 9)),
			State: record.StateClosed, ReviewCount: 2, Additions: 6, Deletions: 3},
		{PRID: 2, CreatedAt: record.NewTime(mar(19, 9)), MergedAt: record.TimePtr(mar(20, 11)),
			State: record.StateClosed, ReviewCount: 4, Additions: 100, Deletions: 20},
		{PRID: 3, CreatedAt: record.NewTime(mar(21, 9)), State: record.StateOpen,
			Additions: 250, Deletions: 50},
		{PRID: 4, CreatedAt: record.NewTime(mar(22, 9)), State: record.StateClosed,
			ReviewCount: 2, Additions: 1200, Deletions: 300},
		// Opened before the window, merged inside it: throughput only.
		{PRID: 5, CreatedAt: record.NewTime(mar(1, 9)), MergedAt: record.TimePtr(mar(20, 15)),
			State: record.StateClosed},
		// Opened inside, merged after: totals only.
		{PRID: 6, CreatedAt: record.NewTime(mar(25, 9)),
			MergedAt: record.TimePtr(time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)),
			State:    record.StateClosed, ReviewCount: 2, Additions: 500, Deletions: 200},
		nil,
	}

	page := BuildPRPage(prs, Timeframe2Weeks, reportNow)
	assert.Equal(t, Timeframe2Weeks, page.Timeframe)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Merged)
	assert.Equal(t, 4, page.Closed)
	assert.Equal(t, 1, page.Open)
	assert.InDelta(t, 0.6, page.MergeRate, 1e-9)
	assert.InDelta(t, 2.0, page.AvgReviews, 1e-9)

	require.Len(t, page.SizeBuckets, 5)
	for i, want := range []int{1, 1, 1, 1, 1} {
		assert.Equal(t, want, page.SizeBuckets[i].Count, page.SizeBuckets[i].Label)
	}

	require.Len(t, page.DailyThroughput, 14)
	byDate := map[string]float64{}
	for _, p := range page.DailyThroughput {
		byDate[p.Date] = p.Value
	}
	assert.Equal(t, 3.0, byDate["2025-03-20"])
	assert.Equal(t, 0.0, byDate["2025-03-21"])

	require.NotNil(t, page.ThroughputTrend)
	assert.True(t, page.ThroughputTrend.Valid)
}

// TestSizeBucketLabels verifies the exact display labels.
func TestSizeBucketLabels(t *testing.T) {
	page := BuildPRPage(nil, Timeframe30Days, reportNow)
	labels := make([]string, len(page.SizeBuckets))
	for i, b := range page.SizeBuckets {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{
		"XS (< 50)", "S (50-199)", "M (200-499)", "L (500-999)", "XL (1000+)",
	}, labels)
}

// TestSizeBucketBoundaries verifies bin edges land in the larger bin.
func TestSizeBucketBoundaries(t *testing.T) {
	buckets := newSizeBuckets()
	cases := map[int]string{
		0:    "XS (< 50)",
		49:   "XS (< 50)",
		50:   "S (50-199)",
		199:  "S (50-199)",
		200:  "M (200-499)",
		499:  "M (200-499)",
		500:  "L (500-999)",
		999:  "L (500-999)",
		1000: "XL (1000+)",
		9000: "XL (1000+)",
	}
	for lines, label := range cases {
		assert.Equal(t, label, bucketFor(buckets, lines).Label, "lines=%d", lines)
	}
}

// TestBuildPRPageEmpty verifies the zero-valued page, all-zero days
// included.
func TestBuildPRPageEmpty(t *testing.T) {
	page := BuildPRPage(nil, Timeframe2Weeks, reportNow)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.MergeRate)
	require.Len(t, page.DailyThroughput, 14)
	require.NotNil(t, page.ThroughputTrend)
	assert.Equal(t, trend.DirectionStable, page.ThroughputTrend.Direction)
}
