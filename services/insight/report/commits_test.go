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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// TestBuildCommitPage verifies totals, daily series and author
// rankings.
func TestBuildCommitPage(t *testing.T) {
	commits := []*record.Commit{
		{SHA: "a1", Author: "alice", Date: record.NewTime(mar(18, 10)), Additions: 10, Deletions: 5},
		{SHA: "a2", Author: "alice", Date: record.NewTime(mar(18, 16)), Additions: 20, Deletions: 10},
		{SHA: "b1", Author: "bob", Date: record.NewTime(mar(20, 12)), Additions: 100, Deletions: 50},
		// Outside the window.
		{SHA: "c1", Author: "cara", Date: record.NewTime(mar(1, 12)), Additions: 999, Deletions: 1},
		nil,
	}

	page := BuildCommitPage(commits, Timeframe2Weeks, reportNow)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 130, page.TotalAdditions)
	assert.Equal(t, 65, page.TotalDeletions)
	assert.Equal(t, 65, page.NetLines)

	require.Len(t, page.DailyCounts, 14)
	counts := map[string]float64{}
	for _, p := range page.DailyCounts {
		counts[p.Date] = p.Value
	}
	assert.Equal(t, 2.0, counts["2025-03-18"])
	assert.Equal(t, 0.0, counts["2025-03-19"])
	assert.Equal(t, 1.0, counts["2025-03-20"])

	require.Len(t, page.DailyChurn, 14)
	churn := map[string]ChurnPoint{}
	for _, p := range page.DailyChurn {
		churn[p.Date] = p
	}
	assert.Equal(t, ChurnPoint{Date: "2025-03-18", Additions: 30, Deletions: 15, Net: 15}, churn["2025-03-18"])
	assert.Equal(t, 0, churn["2025-03-19"].Net)

	require.NotNil(t, page.CountTrend)
	require.NotNil(t, page.ChurnTrend)

	require.Len(t, page.TopByCount, 2)
	assert.Equal(t, "alice", page.TopByCount[0].Author)
	assert.Equal(t, 2, page.TopByCount[0].Commits)

	require.Len(t, page.TopByChurn, 2)
	assert.Equal(t, "bob", page.TopByChurn[0].Author)
	assert.Equal(t, 150, page.TopByChurn[0].Churn)
	assert.Equal(t, "alice", page.TopByChurn[1].Author)
	assert.Equal(t, 45, page.TopByChurn[1].Churn)
}

// TestBuildCommitPageTopTen verifies author rankings cap at ten with
// name tiebreaks.
func TestBuildCommitPageTopTen(t *testing.T) {
	var commits []*record.Commit
	for i := 0; i < 12; i++ {
		author := fmt.Sprintf("dev-%02d", i)
		for j := 0; j <= i; j++ {
			commits = append(commits, &record.Commit{
				SHA:    fmt.Sprintf("%s-%d", author, j),
				Author: author,
				Date:   record.NewTime(mar(18, 10)),
			})
		}
	}

	page := BuildCommitPage(commits, Timeframe2Weeks, reportNow)
	require.Len(t, page.TopByCount, 10)
	assert.Equal(t, "dev-11", page.TopByCount[0].Author)
	assert.Equal(t, 12, page.TopByCount[0].Commits)
	assert.Equal(t, "dev-02", page.TopByCount[9].Author)
}

// TestBuildCommitPageTiebreak verifies equal counts order by name.
func TestBuildCommitPageTiebreak(t *testing.T) {
	commits := []*record.Commit{
		{SHA: "z1", Author: "zed", Date: record.NewTime(mar(18, 10))},
		{SHA: "m1", Author: "amy", Date: record.NewTime(mar(19, 10))},
	}

	page := BuildCommitPage(commits, Timeframe2Weeks, reportNow)
	require.Len(t, page.TopByCount, 2)
	assert.Equal(t, "amy", page.TopByCount[0].Author)
	assert.Equal(t, "zed", page.TopByCount[1].Author)
}

// TestBuildCommitPageEmpty verifies the defined empty result.
func TestBuildCommitPageEmpty(t *testing.T) {
	page := BuildCommitPage(nil, Timeframe2Weeks, reportNow)
	assert.Zero(t, page.Total)
	require.Len(t, page.DailyCounts, 14)
	assert.Empty(t, page.TopByCount)
	require.NotNil(t, page.CountTrend)
}
