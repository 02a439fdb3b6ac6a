// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report aggregates stored records into the dashboard pages:
// pull requests, issues, commits and runner performance.
//
// Builders are pure functions over record slices so callers control
// how much history is loaded. Every builder accepts empty input and
// returns a zero-valued page rather than an error.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/trend"
)

// =============================================================================
// Timeframes
// =============================================================================

// Timeframe is one of the standard reporting windows.
type Timeframe string

const (
	Timeframe2Weeks Timeframe = "2w"
	Timeframe4Weeks Timeframe = "4w"
	Timeframe30Days Timeframe = "30d"
	Timeframe90Days Timeframe = "90d"
)

// DefaultTimeframe is used when a caller passes none.
const DefaultTimeframe = Timeframe30Days

// ParseTimeframe maps a request parameter to a Timeframe. Empty input
// selects the default; anything else unknown is an error.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "":
		return DefaultTimeframe, nil
	case Timeframe2Weeks, Timeframe4Weeks, Timeframe30Days, Timeframe90Days:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe %q (want 2w, 4w, 30d or 90d)", s)
}

// Days returns the window length in days.
func (tf Timeframe) Days() int {
	switch tf {
	case Timeframe2Weeks:
		return 14
	case Timeframe4Weeks:
		return 28
	case Timeframe90Days:
		return 90
	default:
		return 30
	}
}

// Window is a half-open day-aligned interval [Since, Until).
type Window struct {
	Since time.Time
	Until time.Time
}

// Window anchors the timeframe at now: the window ends after the
// current day so today's records are included.
func (tf Timeframe) Window(now time.Time) Window {
	until := dayStart(now).AddDate(0, 0, 1)
	return Window{Since: until.AddDate(0, 0, -tf.Days()), Until: until}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// Daily series
// =============================================================================

const dateLayout = "2006-01-02"

// DailyPoint is one day of a chartable series.
type DailyPoint struct {
	// Date is the day in YYYY-MM-DD form.
	Date string `json:"date"`

	// Value is the day's aggregate.
	Value float64 `json:"value"`
}

// dailySeries expands per-day values into a contiguous zero-filled
// series covering the whole window, alongside the matching trend
// points.
func dailySeries(values map[time.Time]float64, w Window) ([]DailyPoint, []trend.Point) {
	n := int(w.Until.Sub(w.Since).Hours() / 24)
	series := make([]DailyPoint, 0, n)
	points := make([]trend.Point, 0, n)
	for day := w.Since; day.Before(w.Until); day = day.AddDate(0, 0, 1) {
		v := values[day]
		series = append(series, DailyPoint{Date: day.Format(dateLayout), Value: v})
		points = append(points, trend.Point{T: day, V: v})
	}
	return series, points
}

// sparseSeries keeps only days that actually have a value, for
// averages where an empty day means "no sample", not zero.
func sparseSeries(values map[time.Time]float64) ([]DailyPoint, []trend.Point) {
	days := make([]time.Time, 0, len(values))
	for day := range values {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]DailyPoint, 0, len(days))
	points := make([]trend.Point, 0, len(days))
	for _, day := range days {
		series = append(series, DailyPoint{Date: day.Format(dateLayout), Value: values[day]})
		points = append(points, trend.Point{T: day, V: values[day]})
	}
	return series, points
}

// ratio guards the zero denominator.
func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
