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

const topAuthors = 10

// ChurnPoint is one day of line movement. Deletions are kept positive;
// charts render them below the axis.
type ChurnPoint struct {
	Date      string `json:"date"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`

	// Net is additions minus deletions.
	Net int `json:"net"`
}

// AuthorStat is one author's totals in the window.
type AuthorStat struct {
	Author    string `json:"author"`
	Commits   int    `json:"commits"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`

	// Churn is additions plus deletions.
	Churn int `json:"churn"`
}

// CommitPage is the commit-activity dashboard page.
type CommitPage struct {
	// Timeframe is the window the page covers.
	Timeframe Timeframe `json:"timeframe"`

	// Total counts commits in the window.
	Total int `json:"total"`

	// TotalAdditions, TotalDeletions and NetLines sum line movement.
	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`
	NetLines       int `json:"net_lines"`

	// DailyCounts is the zero-filled commits-per-day series.
	DailyCounts []DailyPoint `json:"daily_counts"`

	// CountTrend fits the daily counts.
	CountTrend *trend.Trend `json:"count_trend"`

	// DailyChurn is the zero-filled per-day line movement.
	DailyChurn []ChurnPoint `json:"daily_churn"`

	// ChurnTrend fits the daily net line movement.
	ChurnTrend *trend.Trend `json:"churn_trend"`

	// TopByCount and TopByChurn rank authors, at most ten each.
	TopByCount []AuthorStat `json:"top_by_count"`
	TopByChurn []AuthorStat `json:"top_by_churn"`
}

// BuildCommitPage aggregates commit activity over the timeframe.
func BuildCommitPage(commits []*record.Commit, tf Timeframe, now time.Time) *CommitPage {
	w := tf.Window(now)
	page := &CommitPage{Timeframe: tf}

	counts := make(map[time.Time]float64)
	addsByDay := make(map[time.Time]int)
	delsByDay := make(map[time.Time]int)
	byAuthor := make(map[string]*AuthorStat)

	for _, c := range commits {
		if c == nil || !w.Contains(c.Date.Time) {
			continue
		}
		day := dayStart(c.Date.Time)
		counts[day]++
		addsByDay[day] += c.Additions
		delsByDay[day] += c.Deletions

		page.Total++
		page.TotalAdditions += c.Additions
		page.TotalDeletions += c.Deletions

		stat := byAuthor[c.Author]
		if stat == nil {
			stat = &AuthorStat{Author: c.Author}
			byAuthor[c.Author] = stat
		}
		stat.Commits++
		stat.Additions += c.Additions
		stat.Deletions += c.Deletions
		stat.Churn += c.Additions + c.Deletions
	}
	page.NetLines = page.TotalAdditions - page.TotalDeletions

	var points []trend.Point
	page.DailyCounts, points = dailySeries(counts, w)
	page.CountTrend = trend.Fit(points, nil)

	var churnPts []trend.Point
	for day := w.Since; day.Before(w.Until); day = day.AddDate(0, 0, 1) {
		adds, dels := addsByDay[day], delsByDay[day]
		page.DailyChurn = append(page.DailyChurn, ChurnPoint{
			Date:      day.Format(dateLayout),
			Additions: adds,
			Deletions: dels,
			Net:       adds - dels,
		})
		churnPts = append(churnPts, trend.Point{T: day, V: float64(adds - dels)})
	}
	page.ChurnTrend = trend.Fit(churnPts, nil)

	page.TopByCount = rankAuthors(byAuthor, func(a, b *AuthorStat) bool {
		if a.Commits != b.Commits {
			return a.Commits > b.Commits
		}
		return a.Author < b.Author
	})
	page.TopByChurn = rankAuthors(byAuthor, func(a, b *AuthorStat) bool {
		if a.Churn != b.Churn {
			return a.Churn > b.Churn
		}
		return a.Author < b.Author
	})
	return page
}

func rankAuthors(byAuthor map[string]*AuthorStat, less func(a, b *AuthorStat) bool) []AuthorStat {
	ranked := make([]*AuthorStat, 0, len(byAuthor))
	for _, stat := range byAuthor {
		ranked = append(ranked, stat)
	}
	sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if len(ranked) > topAuthors {
		ranked = ranked[:topAuthors]
	}
	out := make([]AuthorStat, len(ranked))
	for i, stat := range ranked {
		out[i] = *stat
	}
	return out
}
