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
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/trend"
)

// sizeBounds are the lower edges of the PR size bins over total lines
// changed. The last bin is unbounded.
var sizeBounds = []int{0, 50, 200, 500, 1000}

var sizeLabels = []string{
	"XS (< 50)",
	"S (50-199)",
	"M (200-499)",
	"L (500-999)",
	"XL (1000+)",
}

// SizeBucket is one bin of the PR size histogram.
type SizeBucket struct {
	// Label names the bin for display.
	Label string `json:"label"`

	// Min is the inclusive lower edge in total lines changed.
	Min int `json:"min"`

	// Count is how many pull requests fell into the bin.
	Count int `json:"count"`
}

// PRPage is the pull-request dashboard page.
type PRPage struct {
	// Timeframe is the window the page covers.
	Timeframe Timeframe `json:"timeframe"`

	// Total counts pull requests created in the window.
	Total int `json:"total"`

	// Open and Closed split Total by state; Merged is the subset of
	// Closed that merged.
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Merged int `json:"merged"`

	// MergeRate is Merged over Total, 0 when Total is 0.
	MergeRate float64 `json:"merge_rate"`

	// AvgReviews is the mean review count per pull request.
	AvgReviews float64 `json:"avg_reviews"`

	// SizeBuckets is the histogram over total lines changed.
	SizeBuckets []SizeBucket `json:"size_buckets"`

	// DailyThroughput counts merges per day, zero-filled across the
	// window.
	DailyThroughput []DailyPoint `json:"daily_throughput"`

	// ThroughputTrend fits the daily throughput.
	ThroughputTrend *trend.Trend `json:"throughput_trend"`
}

// BuildPRPage aggregates pull requests over the timeframe.
//
// Description:
//
//	Totals, merge rate, review averages and the size histogram cover
//	pull requests created inside the window. Daily throughput counts
//	merges inside the window regardless of when the PR was opened,
//	zero-filling quiet days so the trend sees the full span.
func BuildPRPage(prs []*record.PullRequest, tf Timeframe, now time.Time) *PRPage {
	w := tf.Window(now)
	page := &PRPage{Timeframe: tf, SizeBuckets: newSizeBuckets()}

	var reviewSum int
	merges := make(map[time.Time]float64)
	for _, pr := range prs {
		if pr == nil {
			continue
		}
		if pr.Merged() && w.Contains(pr.MergedAt.Time) {
			merges[dayStart(pr.MergedAt.Time)]++
		}
		if !w.Contains(pr.CreatedAt.Time) {
			continue
		}
		page.Total++
		reviewSum += pr.ReviewCount
		switch {
		case pr.Merged():
			page.Merged++
			page.Closed++
		case pr.State == record.StateClosed:
			page.Closed++
		default:
			page.Open++
		}
		bucketFor(page.SizeBuckets, pr.TotalLines()).Count++
	}

	page.MergeRate = ratio(page.Merged, page.Total)
	if page.Total > 0 {
		page.AvgReviews = float64(reviewSum) / float64(page.Total)
	}

	var points []trend.Point
	page.DailyThroughput, points = dailySeries(merges, w)
	page.ThroughputTrend = trend.Fit(points, nil)
	return page
}

func newSizeBuckets() []SizeBucket {
	buckets := make([]SizeBucket, len(sizeBounds))
	for i := range buckets {
		buckets[i] = SizeBucket{Label: sizeLabels[i], Min: sizeBounds[i]}
	}
	return buckets
}

// bucketFor picks the histogram bin for a line count.
func bucketFor(buckets []SizeBucket, lines int) *SizeBucket {
	for i := len(buckets) - 1; i > 0; i-- {
		if lines >= buckets[i].Min {
			return &buckets[i]
		}
	}
	return &buckets[0]
}
