// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dora derives the two delivery metrics from the DORA research
// program that can be computed from repository data alone: lead time
// for changes and deployment frequency.
//
// Both computations accept plain record slices so callers decide how
// much history to load. Empty input is a valid outcome everywhere in
// this package, never an error.
package dora

import (
	"fmt"
	"time"
)

// =============================================================================
// Performance tiers
// =============================================================================

// Tier is a DORA performance band.
type Tier string

const (
	TierElite  Tier = "elite"
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// ClassifyLeadTime places a lead time in days into its performance
// band. Band boundaries are inclusive on the lower bound, so exactly
// 1.0 days is high, exactly 7.0 days is medium and exactly 30.0 days
// is low.
func ClassifyLeadTime(days float64) Tier {
	switch {
	case days < 1:
		return TierElite
	case days < 7:
		return TierHigh
	case days < 30:
		return TierMedium
	default:
		return TierLow
	}
}

// ClassifyDeployFrequency places a weekly deployment average into its
// performance band. Exactly 1.0 per week is high and exactly 0.25 per
// week (roughly monthly) is medium.
func ClassifyDeployFrequency(perWeek float64) Tier {
	switch {
	case perWeek >= 7:
		return TierElite
	case perWeek >= 1:
		return TierHigh
	case perWeek >= 0.25:
		return TierMedium
	default:
		return TierLow
	}
}

// =============================================================================
// Period buckets
// =============================================================================

// Period selects the bucket width for frequency series.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// bucketStart truncates t to the start of its bucket in UTC. Weeks
// start on Monday.
func bucketStart(t time.Time, p Period) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeek:
		monday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -monday)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// nextBucket advances one bucket width.
func nextBucket(start time.Time, p Period) time.Time {
	switch p {
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// bucketLabel renders a chart axis label for a bucket start. Weeks use
// ISO week numbering, so a label's year can differ from the calendar
// year around January 1st.
func bucketLabel(start time.Time, p Period) string {
	switch p {
	case PeriodWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonth:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}
