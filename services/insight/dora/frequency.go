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
	"strings"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/teams"
)

// DefaultKeywords mark a workflow as deployment-like when its name
// contains any of them, case-insensitively.
var DefaultKeywords = []string{"deploy", "release", "publish"}

// Options adjusts frequency computations.
type Options struct {
	// Keywords overrides DefaultKeywords when non-empty.
	Keywords []string

	// Period selects the bucket width. Defaults to PeriodWeek.
	Period Period

	// Since and Until bound the averaging window. When zero the
	// window is derived from the earliest and latest matching
	// records.
	Since time.Time
	Until time.Time
}

// DefaultOptions returns the conventional frequency settings.
func DefaultOptions() *Options {
	return &Options{
		Keywords: DefaultKeywords,
		Period:   PeriodWeek,
	}
}

func (o *Options) normalized() *Options {
	out := DefaultOptions()
	if o == nil {
		return out
	}
	if len(o.Keywords) > 0 {
		out.Keywords = o.Keywords
	}
	if o.Period.Valid() {
		out.Period = o.Period
	}
	out.Since, out.Until = o.Since, o.Until
	return out
}

// IsDeployment reports whether a workflow name matches any keyword,
// case-insensitively. Empty keywords fall back to DefaultKeywords.
func IsDeployment(workflowName string, keywords []string) bool {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	name := strings.ToLower(workflowName)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Bucket is one period's count in a frequency series.
type Bucket struct {
	// Label names the bucket for chart axes ("2025-03-01",
	// "2025-W09", "2025-03").
	Label string `json:"label"`

	// Start is the bucket's first instant in UTC.
	Start record.Time `json:"start"`

	// Count is how many events fell into the bucket.
	Count int `json:"count"`
}

// RepoFrequency is one repository's deployment cadence.
type RepoFrequency struct {
	// Repo is the repository name.
	Repo string `json:"repo"`

	// Total is the number of successful deployment runs.
	Total int `json:"total"`

	// PerWeek is the weekly average over the window.
	PerWeek float64 `json:"per_week"`

	// Tier classifies PerWeek.
	Tier Tier `json:"tier"`

	// Buckets is the zero-filled per-period series.
	Buckets []Bucket `json:"buckets"`
}

// Frequency is the deployment-frequency result across repositories.
type Frequency struct {
	// Detected is false when no workflow run matched the keywords,
	// meaning no deployment workflows exist rather than an error.
	Detected bool `json:"detected"`

	// Period is the bucket width used.
	Period Period `json:"period"`

	// Total counts all successful deployment runs.
	Total int `json:"total"`

	// PerWeek is the weekly average across all repositories.
	PerWeek float64 `json:"per_week"`

	// Tier classifies the overall PerWeek. Empty when not detected.
	Tier Tier `json:"tier,omitempty"`

	// Repos breaks the cadence down per repository, sorted by name.
	Repos []RepoFrequency `json:"repos,omitempty"`
}

// ComputeFrequency derives deployment frequency from workflow runs.
//
// Description:
//
//	A run counts as a deployment when its workflow name contains a
//	keyword and its conclusion is success. Counts are bucketed per
//	period and per repository, and averaged per week over the window
//	for tier classification. No matching runs at all is a valid
//	result with Detected false.
//
// Inputs:
//   - runs: workflow runs in any order.
//   - opts: optional settings; nil uses DefaultOptions.
//
// Outputs:
//   - *Frequency: never nil.
func ComputeFrequency(runs []*record.WorkflowRun, opts *Options) *Frequency {
	o := opts.normalized()

	var matched []*record.WorkflowRun
	for _, run := range runs {
		if run == nil || run.CreatedAt.IsZero() {
			continue
		}
		if run.Conclusion != record.ConclusionSuccess {
			continue
		}
		if !IsDeployment(run.WorkflowName, o.Keywords) {
			continue
		}
		matched = append(matched, run)
	}
	if len(matched) == 0 {
		return &Frequency{Period: o.Period}
	}

	since, until := o.Since, o.Until
	if since.IsZero() || until.IsZero() {
		since, until = matched[0].CreatedAt.Time, matched[0].CreatedAt.Time
		for _, run := range matched[1:] {
			if run.CreatedAt.Before(since) {
				since = run.CreatedAt.Time
			}
			if run.CreatedAt.After(until) {
				until = run.CreatedAt.Time
			}
		}
	}
	weeks := spanWeeks(since, until)

	byRepo := make(map[string]map[time.Time]int)
	for _, run := range matched {
		start := bucketStart(run.CreatedAt.Time, o.Period)
		if byRepo[run.Repo] == nil {
			byRepo[run.Repo] = make(map[time.Time]int)
		}
		byRepo[run.Repo][start]++
	}

	repos := make([]RepoFrequency, 0, len(byRepo))
	for repo, counts := range byRepo {
		total := 0
		for _, n := range counts {
			total += n
		}
		repos = append(repos, RepoFrequency{
			Repo:    repo,
			Total:   total,
			PerWeek: float64(total) / weeks,
			Tier:    ClassifyDeployFrequency(float64(total) / weeks),
			Buckets: fillBuckets(counts, o.Period),
		})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Repo < repos[j].Repo })

	perWeek := float64(len(matched)) / weeks
	return &Frequency{
		Detected: true,
		Period:   o.Period,
		Total:    len(matched),
		PerWeek:  perWeek,
		Tier:     ClassifyDeployFrequency(perWeek),
		Repos:    repos,
	}
}

// spanWeeks converts a window to fractional weeks, clamped to one week
// so a burst inside a short window does not classify as elite cadence.
func spanWeeks(since, until time.Time) float64 {
	weeks := until.Sub(since).Hours() / (hoursPerDay * 7)
	if weeks < 1 {
		return 1
	}
	return weeks
}

// fillBuckets turns sparse counts into a contiguous series from the
// first occupied bucket to the last, with zero counts in between.
func fillBuckets(counts map[time.Time]int, p Period) []Bucket {
	if len(counts) == 0 {
		return nil
	}
	starts := make([]time.Time, 0, len(counts))
	for start := range counts {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	var out []Bucket
	for cur := starts[0]; !cur.After(starts[len(starts)-1]); cur = nextBucket(cur, p) {
		out = append(out, Bucket{
			Label: bucketLabel(cur, p),
			Start: record.NewTime(cur),
			Count: counts[cur],
		})
	}
	return out
}

// =============================================================================
// PR merge throughput fallback
// =============================================================================

// MergeSeries is one group's merge counts per period.
type MergeSeries struct {
	// Group is a team name or repository name.
	Group string `json:"group"`

	// Total is the number of merges across all buckets.
	Total int `json:"total"`

	// Buckets is the zero-filled per-period series.
	Buckets []Bucket `json:"buckets"`
}

// Throughput is the PR-merge-frequency series used as a deployment
// proxy when no deployment workflows exist.
type Throughput struct {
	// GroupedBy is "team" when a mapping was available, else
	// "repository".
	GroupedBy string `json:"grouped_by"`

	// Period is the bucket width used.
	Period Period `json:"period"`

	// Series holds one entry per group, sorted by group name.
	Series []MergeSeries `json:"series,omitempty"`
}

// MergeThroughput derives merge frequency per period from pull
// requests. With a non-empty team mapping the series are grouped by
// the author's team, authors on no roster falling back to the
// conventional default team; otherwise they are grouped by repository.
func MergeThroughput(prs []*record.PullRequest, mapping teams.Mapping, opts *Options) *Throughput {
	o := opts.normalized()

	groupedBy := "repository"
	if len(mapping) > 0 {
		groupedBy = "team"
	}

	byGroup := make(map[string]map[time.Time]int)
	for _, pr := range prs {
		if pr == nil || !pr.Merged() || pr.MergedAt == nil || pr.MergedAt.IsZero() {
			continue
		}
		group := pr.Repo
		if groupedBy == "team" {
			group = mapping[pr.Author]
			if group == "" {
				group = teams.DefaultFallbackTeam
			}
		}
		start := bucketStart(pr.MergedAt.Time, o.Period)
		if byGroup[group] == nil {
			byGroup[group] = make(map[time.Time]int)
		}
		byGroup[group][start]++
	}

	series := make([]MergeSeries, 0, len(byGroup))
	for group, counts := range byGroup {
		total := 0
		for _, n := range counts {
			total += n
		}
		series = append(series, MergeSeries{
			Group:   group,
			Total:   total,
			Buckets: fillBuckets(counts, o.Period),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Group < series[j].Group })

	return &Throughput{GroupedBy: groupedBy, Period: o.Period, Series: series}
}
