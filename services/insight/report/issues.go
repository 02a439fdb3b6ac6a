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
	"sort"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/trend"
)

// priorityRanks orders the conventional priority names for display,
// most urgent first.
var priorityRanks = map[string]int{
	"Highest": 1,
	"High":    2,
	"Medium":  3,
	"Low":     4,
	"Lowest":  5,
}

// PriorityRank returns the display rank of a priority name, 1 being
// the most urgent. Unknown names rank 0 and sort after the known set.
func PriorityRank(priority string) int {
	return priorityRanks[priority]
}

// PriorityCount is one slice of the priority breakdown.
type PriorityCount struct {
	Priority string `json:"priority"`
	Rank     int    `json:"rank"`
	Count    int    `json:"count"`
}

// BacklogPoint is one day of cumulative backlog movement.
type BacklogPoint struct {
	Date string `json:"date"`

	// Opened and Closed are running totals since the window start.
	Opened int `json:"opened"`
	Closed int `json:"closed"`
}

// Backlog growth verdicts, from comparing the opened and closed
// trends.
const (
	BacklogGrowing   = "growing"
	BacklogShrinking = "shrinking"
	BacklogStable    = "stable"
)

// BacklogGrowth compares cumulative opened vs closed issues.
type BacklogGrowth struct {
	// Days is the zero-origin cumulative series across the window.
	Days []BacklogPoint `json:"days"`

	// OpenedTrend and ClosedTrend fit the two cumulative series.
	OpenedTrend *trend.Trend `json:"opened_trend"`
	ClosedTrend *trend.Trend `json:"closed_trend"`

	// GrowthSlope is opened slope minus closed slope in issues per
	// day. Positive means the backlog grows.
	GrowthSlope float64 `json:"growth_slope"`

	// Verdict states the comparison outcome.
	Verdict string `json:"verdict"`
}

// IssuePage is the issue dashboard page.
type IssuePage struct {
	// Timeframe is the window the page covers.
	Timeframe Timeframe `json:"timeframe"`

	// Total counts issues created in the window; Open and Resolved
	// split it by the presence of a close timestamp.
	Total    int `json:"total"`
	Open     int `json:"open"`
	Resolved int `json:"resolved"`

	// MeanResolutionDays and MedianResolutionDays cover issues closed
	// in the window, in fractional days from creation to close.
	MeanResolutionDays   float64 `json:"mean_resolution_days"`
	MedianResolutionDays float64 `json:"median_resolution_days"`

	// Priorities breaks created issues down by priority, most urgent
	// first, unknown names last.
	Priorities []PriorityCount `json:"priorities"`

	// Backlog compares cumulative opened vs closed movement.
	Backlog *BacklogGrowth `json:"backlog"`
}

// BuildIssuePage aggregates issues over the timeframe.
//
// Description:
//
//	Counts and the priority breakdown cover issues created inside the
//	window. Resolution times cover issues closed inside the window
//	regardless of when they were opened, so long-lived issues still
//	show up when they finally resolve. Backlog growth accumulates
//	opens and closes day by day and fits a trend to each running
//	total.
func BuildIssuePage(issues []*record.Issue, tf Timeframe, now time.Time) *IssuePage {
	w := tf.Window(now)
	page := &IssuePage{Timeframe: tf}

	opened := make(map[time.Time]float64)
	closed := make(map[time.Time]float64)
	byPriority := make(map[string]int)
	var resolutionDays []float64

	for _, issue := range issues {
		if issue == nil {
			continue
		}
		isClosed := issue.ClosedAt != nil && !issue.ClosedAt.IsZero()
		if isClosed && w.Contains(issue.ClosedAt.Time) {
			closed[dayStart(issue.ClosedAt.Time)]++
			if !issue.CreatedAt.IsZero() {
				days := issue.ClosedAt.Sub(issue.CreatedAt.Time).Hours() / 24
				resolutionDays = append(resolutionDays, days)
			}
		}
		if !w.Contains(issue.CreatedAt.Time) {
			continue
		}
		opened[dayStart(issue.CreatedAt.Time)]++
		page.Total++
		if isClosed {
			page.Resolved++
		} else {
			page.Open++
		}
		byPriority[issue.Priority]++
	}

	if len(resolutionDays) > 0 {
		sort.Float64s(resolutionDays)
		var sum float64
		for _, d := range resolutionDays {
			sum += d
		}
		page.MeanResolutionDays = sum / float64(len(resolutionDays))
		mid := len(resolutionDays) / 2
		page.MedianResolutionDays = resolutionDays[mid]
		if len(resolutionDays)%2 == 0 {
			page.MedianResolutionDays = (resolutionDays[mid-1] + resolutionDays[mid]) / 2
		}
	}

	page.Priorities = sortPriorities(byPriority)
	page.Backlog = buildBacklog(opened, closed, w)
	return page
}

func sortPriorities(byPriority map[string]int) []PriorityCount {
	out := make([]PriorityCount, 0, len(byPriority))
	for priority, count := range byPriority {
		out = append(out, PriorityCount{
			Priority: priority,
			Rank:     PriorityRank(priority),
			Count:    count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		if ri == 0 && rj == 0 {
			return out[i].Priority < out[j].Priority
		}
		if ri == 0 || rj == 0 {
			return rj == 0
		}
		return ri < rj
	})
	return out
}

func buildBacklog(opened, closed map[time.Time]float64, w Window) *BacklogGrowth {
	growth := &BacklogGrowth{}
	var openedPts, closedPts []trend.Point
	var openedCum, closedCum int

	for day := w.Since; day.Before(w.Until); day = day.AddDate(0, 0, 1) {
		openedCum += int(opened[day])
		closedCum += int(closed[day])
		growth.Days = append(growth.Days, BacklogPoint{
			Date:   day.Format(dateLayout),
			Opened: openedCum,
			Closed: closedCum,
		})
		openedPts = append(openedPts, trend.Point{T: day, V: float64(openedCum)})
		closedPts = append(closedPts, trend.Point{T: day, V: float64(closedCum)})
	}

	growth.OpenedTrend = trend.Fit(openedPts, nil)
	growth.ClosedTrend = trend.Fit(closedPts, nil)
	growth.GrowthSlope = growth.OpenedTrend.Slope - growth.ClosedTrend.Slope
	switch {
	case growth.GrowthSlope > 0:
		growth.Verdict = BacklogGrowing
	case growth.GrowthSlope < 0:
		growth.Verdict = BacklogShrinking
	default:
		growth.Verdict = BacklogStable
	}
	return growth
}
