// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package teams resolves record authors to their owning teams.
//
// Rosters come from team records; activity records only carry author
// names. The mapping built here joins the two, with two placeholder
// outcomes: authors missing from every roster land on a configurable
// default team, and records with no author at all land on Unassigned.
// The distinction matters downstream: a large default-team population
// means stale rosters, a large Unassigned population means bad data.
package teams

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// Unassigned is the placeholder team for records whose author field is
// missing or empty. Distinct from the default team, which catches
// authors present but on no roster.
const Unassigned = "Unassigned"

// DefaultFallbackTeam is the conventional default team name for authors
// on no roster.
const DefaultFallbackTeam = "Other"

// coverageGapThreshold is the fraction of distinct authors that may be
// unmapped before an augment call asks for a roster rebuild.
const coverageGapThreshold = 0.10

// coverageSampleSize bounds how many unmapped names the diagnostics
// carry.
const coverageSampleSize = 5

// Mapping is the author-name to team-name index.
type Mapping map[string]string

// BuildMapping folds team rosters into a single author index.
//
// Description:
//
//	Teams are processed in ascending team_id order so the result is
//	deterministic regardless of input order. Members may appear on more
//	than one roster; the later team wins and the conflict is logged at
//	warn, never treated as an error.
//
// Inputs:
//
//	teams - Team records in any order.
//	logger - Conflict log destination; nil uses the default logger.
//
// Outputs:
//
//	Mapping - Author name to team name. Never nil.
func BuildMapping(teams []*record.Team, logger *slog.Logger) Mapping {
	if logger == nil {
		logger = slog.Default()
	}

	ordered := make([]*record.Team, len(teams))
	copy(ordered, teams)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].TeamID < ordered[j].TeamID
	})

	mapping := make(Mapping)
	for _, team := range ordered {
		for _, member := range team.Members {
			if member == "" {
				continue
			}
			if prev, ok := mapping[member]; ok && prev != team.Name {
				logger.Warn("author appears on multiple teams",
					slog.String("author", member),
					slog.String("kept_team", team.Name),
					slog.String("shadowed_team", prev))
			}
			mapping[member] = team.Name
		}
	}
	return mapping
}

// Coverage describes how well a mapping covered one batch of records.
type Coverage struct {
	// DistinctAuthors is how many distinct non-empty authors appeared.
	DistinctAuthors int `json:"distinct_authors"`

	// UnmappedAuthors is how many of those were on no roster.
	UnmappedAuthors int `json:"unmapped_authors"`

	// UnmappedSample holds up to a handful of unmapped names, sorted,
	// for log and API diagnostics.
	UnmappedSample []string `json:"unmapped_sample,omitempty"`
}

// GapExceeded reports whether the unmapped fraction crossed the rebuild
// threshold.
func (c Coverage) GapExceeded() bool {
	if c.DistinctAuthors == 0 {
		return false
	}
	return float64(c.UnmappedAuthors)/float64(c.DistinctAuthors) > coverageGapThreshold
}

// Attribution is the result of annotating a batch of records.
type Attribution struct {
	// Teams is the assigned team per input record, index-aligned.
	Teams []string `json:"teams"`

	// Coverage carries the gap diagnostics for this batch.
	Coverage Coverage `json:"coverage"`

	// Rebuilt is true when a coverage gap triggered a roster rebuild
	// and the batch was re-annotated against the fresh mapping.
	Rebuilt bool `json:"rebuilt"`
}

// Augment assigns a team to every record in the batch.
//
// Description:
//
//	Reads the author field by wire name from each record. A mapped
//	author gets their team; an unmapped author gets defaultTeam; a
//	missing or empty author gets Unassigned. An empty batch returns an
//	empty attribution, not an error.
//
// Inputs:
//
//	records - Batch to annotate; all must expose authorField.
//	mapping - Author index from BuildMapping.
//	authorField - Wire name of the author field ("author", "assignee").
//	defaultTeam - Team for unmapped authors; empty uses
//	DefaultFallbackTeam.
//
// Outputs:
//
//	*Attribution - Index-aligned team assignments plus coverage.
//	error - Non-nil when a record lacks the author field.
func Augment(records []record.Record, mapping Mapping, authorField, defaultTeam string) (*Attribution, error) {
	if defaultTeam == "" {
		defaultTeam = DefaultFallbackTeam
	}

	att := &Attribution{Teams: make([]string, len(records))}
	seen := make(map[string]struct{})
	unmapped := make(map[string]struct{})

	for i, rec := range records {
		value, ok := rec.Field(authorField)
		if !ok {
			return nil, fmt.Errorf("record kind %q has no field %q", rec.RecordKind(), authorField)
		}
		author, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %q of kind %q is not a string field", authorField, rec.RecordKind())
		}

		if author == "" {
			att.Teams[i] = Unassigned
			continue
		}
		seen[author] = struct{}{}

		if team, ok := mapping[author]; ok {
			att.Teams[i] = team
		} else {
			att.Teams[i] = defaultTeam
			unmapped[author] = struct{}{}
		}
	}

	att.Coverage.DistinctAuthors = len(seen)
	att.Coverage.UnmappedAuthors = len(unmapped)
	if len(unmapped) > 0 {
		names := make([]string, 0, len(unmapped))
		for name := range unmapped {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > coverageSampleSize {
			names = names[:coverageSampleSize]
		}
		att.Coverage.UnmappedSample = names
	}
	return att, nil
}
