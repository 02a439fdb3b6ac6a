// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dora

import (
	"sort"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

const hoursPerDay = 24.0

// LeadTimeEntry is the lead time of a single merged pull request, kept
// for distribution charts.
type LeadTimeEntry struct {
	// PRID identifies the pull request.
	PRID int64 `json:"pr_id"`

	// Repo is the repository the pull request targets.
	Repo string `json:"repo"`

	// Days is the elapsed time from creation to merge in fractional
	// days.
	Days float64 `json:"days"`

	// MergedAt is when the change landed.
	MergedAt record.Time `json:"merged_at"`
}

// LeadTime aggregates lead time for changes over a set of pull
// requests.
type LeadTime struct {
	// Count is how many merged pull requests contributed.
	Count int `json:"count"`

	// MeanDays is the arithmetic mean lead time.
	MeanDays float64 `json:"mean_days"`

	// MedianDays is the median lead time.
	MedianDays float64 `json:"median_days"`

	// Tier classifies the median. Empty when Count is zero.
	Tier Tier `json:"tier,omitempty"`

	// Entries holds the per-PR values ordered by merge time.
	Entries []LeadTimeEntry `json:"entries,omitempty"`
}

// ComputeLeadTime derives lead time for changes from pull requests.
//
// Description:
//
//	Lead time of one change is merged_at minus created_at in
//	fractional days. Pull requests that never merged, or whose
//	timestamps are missing, are excluded entirely rather than counted
//	as zero.
//
// Inputs:
//   - prs: pull requests in any state and order.
//
// Outputs:
//   - *LeadTime: aggregate plus per-PR entries. Count 0 with an empty
//     tier when nothing merged.
func ComputeLeadTime(prs []*record.PullRequest) *LeadTime {
	entries := make([]LeadTimeEntry, 0, len(prs))
	for _, pr := range prs {
		if pr == nil || !pr.Merged() || pr.CreatedAt.IsZero() {
			continue
		}
		if pr.MergedAt == nil || pr.MergedAt.IsZero() {
			continue
		}
		entries = append(entries, LeadTimeEntry{
			PRID:     pr.PRID,
			Repo:     pr.Repo,
			Days:     pr.MergedAt.Sub(pr.CreatedAt.Time).Hours() / hoursPerDay,
			MergedAt: *pr.MergedAt,
		})
	}
	if len(entries) == 0 {
		return &LeadTime{}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MergedAt.Before(entries[j].MergedAt.Time)
	})

	days := make([]float64, len(entries))
	var sum float64
	for i, e := range entries {
		days[i] = e.Days
		sum += e.Days
	}
	sort.Float64s(days)

	median := days[len(days)/2]
	if len(days)%2 == 0 {
		median = (days[len(days)/2-1] + days[len(days)/2]) / 2
	}

	return &LeadTime{
		Count:      len(entries),
		MeanDays:   sum / float64(len(entries)),
		MedianDays: median,
		Tier:       ClassifyLeadTime(median),
		Entries:    entries,
	}
}
