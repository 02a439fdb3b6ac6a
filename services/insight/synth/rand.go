// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synth

import (
	"math"
	"math/rand/v2"
	"time"
)

// sampler wraps a seeded PCG source with the distribution helpers the
// pipeline stages share. It is not safe for concurrent use; the
// pipeline runs its stages sequentially so a seed replays exactly.
type sampler struct {
	rng *rand.Rand
}

func newSampler(seed uint64) *sampler {
	return &sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *sampler) float() float64 { return s.rng.Float64() }

func (s *sampler) intn(n int) int { return s.rng.IntN(n) }

// between returns an integer in [lo, hi], both ends inclusive.
func (s *sampler) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// uniform returns a float in [lo, hi).
func (s *sampler) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *sampler) normal(mean, stddev float64) float64 {
	return mean + s.rng.NormFloat64()*stddev
}

func (s *sampler) normalClamped(mean, stddev, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, s.normal(mean, stddev)))
}

// longTail draws from a Pareto tail squashed into [min, max]: most
// samples land mid-range with a thin tail toward max.
func (s *sampler) longTail(min, max, shape float64) float64 {
	u := s.rng.Float64()
	x := 1.0 / math.Pow(1.0-u, 1.0/shape)
	scaled := min + (x/(x+1.0))*(max-min)
	return math.Min(scaled, max)
}

// weightedIndex picks an index with probability proportional to its
// weight. A non-positive total falls back to a uniform pick.
func (s *sampler) weightedIndex(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.rng.IntN(len(weights))
	}
	target := s.rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// choice returns a uniform pick from items.
func choice[T any](s *sampler, items []T) T {
	return items[s.intn(len(items))]
}

// weightedChoice returns an item with probability proportional to the
// weight at the same index.
func weightedChoice[T any](s *sampler, items []T, weights []float64) T {
	return items[s.weightedIndex(weights)]
}

// sample draws k distinct items without replacement, in random order.
func sample[T any](s *sampler, items []T, k int) []T {
	if k <= 0 {
		return nil
	}
	if k > len(items) {
		k = len(items)
	}
	idx := s.rng.Perm(len(items))
	out := make([]T, k)
	for i := range out {
		out[i] = items[idx[i]]
	}
	return out
}

// =============================================================================
// Dates
// =============================================================================

// date draws a timestamp in [start, end] under the activity
// distribution: ninety percent of samples cluster around a random
// center with a random spread, the rest are uniform. Weekday bias
// then pushes most weekend samples onto the nearest Monday or Friday.
func (s *sampler) date(start, end time.Time, weekdayBias bool) time.Time {
	span := end.Sub(start).Seconds()
	if span <= 0 {
		return start
	}

	var offset float64
	if s.float() < 0.9 {
		mean := s.uniform(0, span)
		sigma := span / float64(choice(s, []int{2, 4, 6, 8}))
		offset = math.Min(span, math.Max(0, s.normal(mean, sigma)))
	} else {
		offset = s.uniform(0, span)
	}
	t := start.Add(time.Duration(offset * float64(time.Second)))

	if weekdayBias {
		t = s.biasWeekday(t, start, end)
	}
	return t
}

// uniformDate draws a timestamp uniformly in [start, end].
func (s *sampler) uniformDate(start, end time.Time) time.Time {
	span := end.Sub(start).Seconds()
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(s.uniform(0, span) * float64(time.Second)))
}

// biasWeekday moves seventy percent of weekend timestamps to the
// following Monday or the preceding Friday, clamped to [start, end].
func (s *sampler) biasWeekday(t, start, end time.Time) time.Time {
	wd := t.Weekday()
	if wd != time.Saturday && wd != time.Sunday {
		return t
	}
	if s.float() >= 0.7 {
		return t
	}
	var shifted time.Time
	if s.float() < 0.5 {
		days := int(time.Monday-wd+7) % 7
		shifted = t.AddDate(0, 0, days)
	} else {
		days := int(wd - time.Friday)
		if days < 0 {
			days += 7
		}
		shifted = t.AddDate(0, 0, -days)
	}
	if shifted.Before(start) {
		return start
	}
	if shifted.After(end) {
		return end
	}
	return shifted
}

// withHour keeps the date and replaces the clock with the given hour
// and a random minute and second.
func (s *sampler) withHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, s.intn(60), s.intn(60), 0, t.Location())
}
