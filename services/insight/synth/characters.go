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

// Work patterns shape the hour-of-day a developer's activity lands on.
const (
	patternBusiness    = "business"
	patternNightOwl    = "night_owl"
	patternDistributed = "distributed"
)

// Specialization axes used when weighting authorship.
const (
	taskBugFixing     = "bug_fixing"
	taskFeatures      = "features"
	taskRefactoring   = "refactoring"
	taskDocumentation = "documentation"
)

// character is one developer's behavior profile. Every generated
// issue, pull request and commit is weighted by its author's profile,
// so the same few developers dominate the same kinds of work across a
// run.
type character struct {
	// activity scales how often the developer authors anything.
	activity float64

	// quality and productivity shade outcome-side rolls.
	quality      float64
	productivity float64

	// pattern picks the hour-of-day distribution.
	pattern string

	// specialization weights per task flavor.
	specialization map[string]float64

	// sizePreference biases toward larger or smaller changes.
	sizePreference float64

	// complexityPreference biases toward harder issues.
	complexityPreference float64

	// reviewThoroughness scales review participation.
	reviewThoroughness float64
}

// workPatterns oversamples business hours: three business slots for
// every distributed and night-owl slot.
var workPatterns = []string{
	patternDistributed,
	patternBusiness, patternBusiness, patternBusiness,
	patternNightOwl,
}

func newCharacter(s *sampler) *character {
	return &character{
		activity:     s.uniform(0.5, 1.5),
		quality:      s.uniform(0.7, 1.3),
		productivity: s.uniform(0.7, 1.3),
		pattern:      choice(s, workPatterns),
		specialization: map[string]float64{
			taskBugFixing:     s.uniform(0.5, 1.5),
			taskFeatures:      s.uniform(0.5, 1.5),
			taskRefactoring:   s.uniform(0.5, 1.5),
			taskDocumentation: s.uniform(0.5, 1.5),
		},
		sizePreference:       s.uniform(0.5, 1.5),
		complexityPreference: s.uniform(0.5, 1.5),
		reviewThoroughness:   s.uniform(0.5, 1.5),
	}
}

// hourFor samples an hour of day for the character's work pattern.
//
// Business developers work 9-17 most of the time with occasional
// early or late hours; night owls concentrate in the evening and the
// small hours; distributed developers are flat across the day.
func (s *sampler) hourFor(c *character) int {
	switch c.pattern {
	case patternBusiness:
		if s.float() < 0.8 {
			return s.between(9, 17)
		}
		return choice(s, offHours)
	case patternNightOwl:
		if s.float() < 0.7 {
			if s.float() < 0.7 {
				return s.between(18, 23)
			}
			return s.between(0, 6)
		}
		return s.between(9, 17)
	default:
		return s.between(0, 23)
	}
}

// offHours is the fallback pool for business-pattern developers: the
// shoulder hours appear once more than the flat 0-23 background, so
// early mornings and evenings stay more likely than midnight.
var offHours = buildOffHours()

func buildOffHours() []int {
	hours := []int{7, 8, 18, 19, 20}
	for h := 0; h < 24; h++ {
		hours = append(hours, h)
	}
	return hours
}
