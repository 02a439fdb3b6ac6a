// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trend fits least-squares trend lines to timestamped series.
//
// The engine is a pure function over the points it is handed: it never
// resamples or gap-fills. Callers that want "0 on the days nothing
// happened" fill those zeros in before calling Fit.
package trend

import (
	"math"
	"time"
)

// Direction classifies the fitted slope.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"

	// DirectionUndetermined is the sentinel for series the engine
	// refuses to fit: fewer than two usable points, or every point on
	// the same instant. Callers must branch on it (or on Valid) before
	// reading the other fields.
	DirectionUndetermined Direction = "undetermined"
)

// Point is one sample of a timestamped series.
type Point struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// Trend is the result of a least-squares fit.
type Trend struct {
	// Direction is increasing, decreasing, stable, or undetermined.
	// Stable means an exactly zero slope; near-flat noisy series still
	// report the sign of their slope.
	Direction Direction `json:"direction"`

	// PercentChange is the change between the fitted values at the
	// series endpoints, as a percentage of the fitted start. Zero when
	// the fitted start is exactly zero or the fit is undetermined.
	PercentChange float64 `json:"percent_change"`

	// Slope is in value units per day.
	Slope float64 `json:"slope"`

	// Intercept is the fitted value at the Unix epoch.
	Intercept float64 `json:"intercept"`

	// RSquared is the coefficient of determination; zero when the
	// series has no variance.
	RSquared float64 `json:"r_squared"`

	// Line is the fitted line sampled at evenly spaced timestamps
	// across the series span. Nil when the fit is undetermined or
	// sampling is disabled.
	Line []Point `json:"line,omitempty"`

	// Points is how many usable points went into the fit.
	Points int `json:"points"`

	// Valid is false exactly when Direction is undetermined.
	Valid bool `json:"valid"`
}

// Options configures a fit.
type Options struct {
	// LineSamples is how many points the fitted line carries.
	// Default: 100. Values below 2 disable line sampling.
	LineSamples int
}

// DefaultOptions returns the standard fit configuration.
func DefaultOptions() Options {
	return Options{LineSamples: 100}
}

// millisPerDay converts epoch milliseconds to the fractional-day axis
// the regression runs on.
const millisPerDay = 24 * 60 * 60 * 1000

func daysSinceEpoch(t time.Time) float64 {
	return float64(t.UnixMilli()) / millisPerDay
}

func timeAtDays(d float64) time.Time {
	return time.UnixMilli(int64(math.Round(d * millisPerDay))).UTC()
}

// Fit computes the least-squares trend of a series.
//
// Description:
//
//	Points whose value is NaN or infinite, or whose timestamp is the
//	zero time, are dropped first. If fewer than two points remain, or
//	all remaining points share one instant, the result is the
//	undetermined sentinel: callers get a zero percent change and no
//	line, never a panic or an error. Otherwise timestamps become
//	fractional days since the Unix epoch and an ordinary least-squares
//	line is fitted over them.
//
// Inputs:
//
//	series - Timestamped samples in any order.
//	opts - Optional configuration; nil uses DefaultOptions.
//
// Outputs:
//
//	Trend - The fit. Check Valid (or Direction) before using the line.
func Fit(series []Point, opts *Options) Trend {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	valid := make([]Point, 0, len(series))
	for _, p := range series {
		if p.T.IsZero() || math.IsNaN(p.V) || math.IsInf(p.V, 0) {
			continue
		}
		valid = append(valid, p)
	}

	if len(valid) < 2 {
		return Trend{Direction: DirectionUndetermined, Points: len(valid)}
	}

	minX, maxX := daysSinceEpoch(valid[0].T), daysSinceEpoch(valid[0].T)
	constant := true
	for _, p := range valid[1:] {
		x := daysSinceEpoch(p.T)
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		if p.V != valid[0].V {
			constant = false
		}
	}
	if minX == maxX {
		// A vertical stack of points has no slope to speak of.
		return Trend{Direction: DirectionUndetermined, Points: len(valid)}
	}

	// A constant series is exactly flat; short-circuiting keeps the
	// zero slope exact instead of trusting float cancellation.
	if constant {
		t := Trend{
			Direction: DirectionStable,
			Intercept: valid[0].V,
			Points:    len(valid),
			Valid:     true,
		}
		t.Line = sampleLine(0, valid[0].V, minX, maxX, opts.LineSamples)
		return t
	}

	// Mean-centered least squares; better conditioned than the raw
	// normal equations with x values tens of thousands of days out.
	var sumX, sumY float64
	for _, p := range valid {
		sumX += daysSinceEpoch(p.T)
		sumY += p.V
	}
	n := float64(len(valid))
	meanX, meanY := sumX/n, sumY/n

	var sxx, sxy float64
	for _, p := range valid {
		dx := daysSinceEpoch(p.T) - meanX
		dy := p.V - meanY
		sxx += dx * dx
		sxy += dx * dy
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for _, p := range valid {
		fitted := intercept + slope*daysSinceEpoch(p.T)
		ssRes += (p.V - fitted) * (p.V - fitted)
		ssTot += (p.V - meanY) * (p.V - meanY)
	}
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}

	result := Trend{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  rSquared,
		Points:    len(valid),
		Valid:     true,
	}

	switch {
	case slope > 0:
		result.Direction = DirectionIncreasing
	case slope < 0:
		result.Direction = DirectionDecreasing
	default:
		result.Direction = DirectionStable
	}

	fitStart := intercept + slope*minX
	fitEnd := intercept + slope*maxX
	if fitStart != 0 {
		result.PercentChange = (fitEnd - fitStart) / fitStart * 100
	}

	result.Line = sampleLine(slope, intercept, minX, maxX, opts.LineSamples)
	return result
}

// sampleLine evaluates the fitted line at count evenly spaced x values
// spanning [minX, maxX].
func sampleLine(slope, intercept, minX, maxX float64, count int) []Point {
	if count < 2 {
		return nil
	}
	line := make([]Point, count)
	step := (maxX - minX) / float64(count-1)
	for i := range line {
		x := minX + step*float64(i)
		line[i] = Point{T: timeAtDays(x), V: intercept + slope*x}
	}
	return line
}
