// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trend

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// dailySeries builds one point per day from fn(dayIndex).
func dailySeries(days int, fn func(i int) float64) []Point {
	series := make([]Point, days)
	for i := range series {
		series[i] = Point{T: testBase.AddDate(0, 0, i), V: fn(i)}
	}
	return series
}

// TestFitLinearSeries verifies a perfect line fits with r² of 1 and the
// percent change computed from the fitted endpoints.
func TestFitLinearSeries(t *testing.T) {
	series := dailySeries(10, func(i int) float64 { return 2*float64(i) + 5 })

	result := Fit(series, nil)
	require.True(t, result.Valid)
	assert.Equal(t, DirectionIncreasing, result.Direction)
	assert.InDelta(t, 2.0, result.Slope, 1e-6)
	assert.InDelta(t, 1.0, result.RSquared, 1e-9)
	assert.Equal(t, 10, result.Points)

	// Fitted endpoints are 5 and 23, so (23-5)/5 = 360%.
	assert.InDelta(t, 360.0, result.PercentChange, 1e-6)
}

// TestFitDecreasingSeries verifies a negative slope reports decreasing.
func TestFitDecreasingSeries(t *testing.T) {
	series := dailySeries(8, func(i int) float64 { return 100 - 3*float64(i) })

	result := Fit(series, nil)
	require.True(t, result.Valid)
	assert.Equal(t, DirectionDecreasing, result.Direction)
	assert.Negative(t, result.PercentChange)
}

// TestFitTooFewPoints verifies the undetermined sentinel.
func TestFitTooFewPoints(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		result := Fit(nil, nil)
		assert.Equal(t, DirectionUndetermined, result.Direction)
		assert.False(t, result.Valid)
		assert.Zero(t, result.PercentChange)
		assert.Nil(t, result.Line)
		assert.Zero(t, result.Points)
	})

	t.Run("single point", func(t *testing.T) {
		result := Fit([]Point{{T: testBase, V: 42}}, nil)
		assert.Equal(t, DirectionUndetermined, result.Direction)
		assert.False(t, result.Valid)
		assert.Equal(t, 1, result.Points)
	})

	t.Run("two points but only one usable", func(t *testing.T) {
		result := Fit([]Point{
			{T: testBase, V: 42},
			{T: testBase.AddDate(0, 0, 1), V: math.NaN()},
		}, nil)
		assert.Equal(t, DirectionUndetermined, result.Direction)
		assert.Equal(t, 1, result.Points)
	})
}

// TestFitConstantSeries verifies an exactly flat series reports stable
// with zero change.
func TestFitConstantSeries(t *testing.T) {
	series := dailySeries(6, func(int) float64 { return 7.5 })

	result := Fit(series, nil)
	require.True(t, result.Valid)
	assert.Equal(t, DirectionStable, result.Direction)
	assert.Zero(t, result.Slope)
	assert.Zero(t, result.PercentChange)
	assert.Zero(t, result.RSquared)
	require.NotEmpty(t, result.Line)
	for _, p := range result.Line {
		assert.InDelta(t, 7.5, p.V, 1e-9)
	}
}

// TestFitDropsUnusablePoints verifies NaN, Inf, and zero-time points
// are excluded before fitting.
func TestFitDropsUnusablePoints(t *testing.T) {
	series := dailySeries(10, func(i int) float64 { return 2*float64(i) + 5 })
	series = append(series,
		Point{T: testBase.AddDate(0, 0, 20), V: math.NaN()},
		Point{T: testBase.AddDate(0, 0, 21), V: math.Inf(1)},
		Point{T: time.Time{}, V: 999},
	)

	result := Fit(series, nil)
	require.True(t, result.Valid)
	assert.Equal(t, 10, result.Points)
	assert.InDelta(t, 2.0, result.Slope, 1e-6)
	assert.InDelta(t, 1.0, result.RSquared, 1e-9)
}

// TestFitSameInstant verifies a vertical stack of points is
// undetermined, not a division by zero.
func TestFitSameInstant(t *testing.T) {
	series := []Point{
		{T: testBase, V: 1},
		{T: testBase, V: 2},
		{T: testBase, V: 3},
	}

	result := Fit(series, nil)
	assert.Equal(t, DirectionUndetermined, result.Direction)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.Points)
}

// TestFitZeroBaseline verifies a fitted start of exactly zero yields a
// zero percent change instead of a division by zero.
func TestFitZeroBaseline(t *testing.T) {
	series := dailySeries(5, func(i int) float64 { return 2 * float64(i) })

	result := Fit(series, nil)
	require.True(t, result.Valid)
	assert.Equal(t, DirectionIncreasing, result.Direction)
	assert.Zero(t, result.PercentChange)
}

// TestFitLineSampling verifies the fitted line's shape and span.
func TestFitLineSampling(t *testing.T) {
	series := dailySeries(30, func(i int) float64 { return float64(i) })

	result := Fit(series, nil)
	require.True(t, result.Valid)
	require.Len(t, result.Line, 100)

	first, last := result.Line[0], result.Line[99]
	assert.WithinDuration(t, testBase, first.T, time.Second)
	assert.WithinDuration(t, testBase.AddDate(0, 0, 29), last.T, time.Second)
	assert.InDelta(t, 0.0, first.V, 1e-6)
	assert.InDelta(t, 29.0, last.V, 1e-6)

	// Evenly spaced: constant gap between consecutive samples.
	gap := result.Line[1].T.Sub(result.Line[0].T)
	for i := 2; i < len(result.Line); i++ {
		step := result.Line[i].T.Sub(result.Line[i-1].T)
		assert.InDelta(t, gap.Seconds(), step.Seconds(), 1.0)
	}

	t.Run("sampling disabled", func(t *testing.T) {
		result := Fit(series, &Options{LineSamples: 0})
		require.True(t, result.Valid)
		assert.Nil(t, result.Line)
		assert.Equal(t, DirectionIncreasing, result.Direction)
	})

	t.Run("custom sample count", func(t *testing.T) {
		result := Fit(series, &Options{LineSamples: 10})
		assert.Len(t, result.Line, 10)
	})
}

// TestFitUnsortedInput verifies order does not matter.
func TestFitUnsortedInput(t *testing.T) {
	sorted := dailySeries(10, func(i int) float64 { return 2*float64(i) + 5 })
	shuffled := []Point{sorted[7], sorted[0], sorted[9], sorted[3], sorted[5],
		sorted[1], sorted[8], sorted[2], sorted[6], sorted[4]}

	a := Fit(sorted, nil)
	b := Fit(shuffled, nil)
	assert.InDelta(t, a.Slope, b.Slope, 1e-9)
	assert.InDelta(t, a.PercentChange, b.PercentChange, 1e-9)
	assert.Equal(t, a.Direction, b.Direction)
}
