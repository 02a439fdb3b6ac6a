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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// TestGenerateIssues verifies tracker invariants across a full run:
// key format, per-repo identity ranges, status/resolution coupling and
// timestamp ordering.
func TestGenerateIssues(t *testing.T) {
	cfg := testConfig(21)
	_, st := runGenerator(t, cfg)

	recs := st.records[record.KindIssue]
	require.Len(t, recs, cfg.IssuesPerRepo*len(repoNames))

	validTypes := map[string]bool{"Bug": true, "Task": true, "Story": true, "Epic": true}
	validPriorities := map[string]bool{
		"Highest": true, "High": true, "Medium": true, "Low": true, "Lowest": true,
	}
	closedSeen, openSeen := 0, 0

	for _, rec := range recs {
		issue, ok := rec.(*record.Issue)
		require.True(t, ok)

		repoIdx := int((issue.IssueID - 1)) / cfg.IssuesPerRepo
		require.Less(t, repoIdx, len(repoNames))
		repo := repoNames[repoIdx]
		assert.Equal(t, "mock-org/"+repo, issue.Repo)
		assert.Equal(t, projectKeys[repo], issue.ProjectKey)
		assert.Equal(t, fmt.Sprintf("%s-%d", issue.ProjectKey, issue.IssueID), issue.IssueKey)

		assert.True(t, validTypes[issue.IssueType], "unknown type %q", issue.IssueType)
		assert.True(t, validPriorities[issue.Priority], "unknown priority %q", issue.Priority)
		assert.NotEmpty(t, issue.Author)
		assert.False(t, issue.CreatedAt.IsZero())
		assert.False(t, issue.UpdatedAt.Before(issue.CreatedAt.Time))

		if issue.ClosedAt != nil {
			closedSeen++
			assert.Contains(t, []string{"Done", "Resolved"}, issue.Status)
			assert.NotEmpty(t, issue.Resolution)
			assert.False(t, issue.ClosedAt.Before(issue.CreatedAt.Time))
		} else {
			openSeen++
			assert.Empty(t, issue.Resolution)
			assert.NotContains(t, []string{"Done", "Resolved"}, issue.Status)
		}

		if issue.IssueType == "Epic" {
			assert.Empty(t, issue.EpicLink, "epics never link to another epic")
			assert.Zero(t, issue.StoryPoints)
		}
		if issue.EpicLink != "" {
			assert.True(t, strings.HasPrefix(issue.EpicLink, issue.ProjectKey+"-"))
		}
		if issue.DueDate != nil {
			assert.True(t, issue.DueDate.After(issue.CreatedAt.Time))
		}
	}

	// A year of mixed work always has both open and closed issues.
	assert.Greater(t, closedSeen, 0)
	assert.Greater(t, openSeen, 0)
}

// TestIssueAuthorsOnRoster verifies every issue author and assignee is
// a known developer.
func TestIssueAuthorsOnRoster(t *testing.T) {
	cfg := testConfig(22)
	_, st := runGenerator(t, cfg)

	known := make(map[string]bool, cfg.OrgSize)
	for _, rec := range st.records[record.KindTeam] {
		for _, m := range rec.(*record.Team).Members {
			known[m] = true
		}
	}

	for _, rec := range st.records[record.KindIssue] {
		issue := rec.(*record.Issue)
		assert.True(t, known[issue.Author], "author %q not on any team", issue.Author)
		if issue.Assignee != "" {
			assert.True(t, known[issue.Assignee], "assignee %q not on any team", issue.Assignee)
		}
	}
}

// TestIssueTitleShapes verifies titles lead with their type and bug
// titles read as bug reports.
func TestIssueTitleShapes(t *testing.T) {
	_, st := runGenerator(t, testConfig(23))

	for _, rec := range st.records[record.KindIssue] {
		issue := rec.(*record.Issue)
		require.True(t, strings.HasPrefix(issue.Title, issue.IssueType+": "),
			"title %q must lead with type %s", issue.Title, issue.IssueType)
		if issue.IssueType == "Bug" {
			assert.True(t, strings.Contains(issue.Title, " in "), "bug title %q", issue.Title)
		}
	}
}
