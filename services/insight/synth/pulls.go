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
	"context"
	"fmt"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

var (
	prVerbs = []string{
		"Add", "Fix", "Update", "Implement", "Refactor", "Remove",
		"Optimize", "Improve", "Streamline", "Enhance",
	}
	prTargets = []string{
		"feature", "bug", "performance issue", "UI component", "API endpoint",
		"documentation", "test", "workflow", "configuration", "dependency",
		"accessibility", "error handling",
	}
)

// generatePullRequests writes PRsPerRepo change proposals per repo.
//
// Review time scales with a per-PR complexity roll, with an eight
// percent outlier band of multi-day reviews. Size follows a long-tail
// file count; most PRs link back to an issue of the same repository
// and carry its key in the title.
func (g *Generator) generatePullRequests(ctx context.Context, st *orgState, b *batcher) error {
	s := g.s
	for rIdx, repo := range repoNames {
		for i := 0; i < g.cfg.PRsPerRepo; i++ {
			prID := int64(i + 1 + rIdx*g.cfg.PRsPerRepo)

			created := s.date(g.cfg.Start, g.cfg.End, true)
			complexity := clampFloat(s.normal(1.0, 0.6), 0.3, 3.5)

			var reviewHours int
			if s.float() < 0.08 {
				reviewHours = s.between(72, 240)
			} else {
				reviewHours = int(float64(s.between(1, 48)) * complexity)
			}

			closed := s.float() > 0.2+0.05*complexity
			merged := closed && s.float() > 0.1+0.1*complexity

			var closedAt, mergedAt *record.Time
			state := record.StateOpen
			if closed {
				state = record.StateClosed
				at := created.Add(time.Duration(reviewHours) * time.Hour)
				if s.float() < 0.05 {
					at = at.Add(time.Duration(s.between(24, 72)) * time.Hour)
				}
				closedAt = record.TimePtr(at)
				if merged {
					mergedAt = closedAt
				}
			}

			var reviews int
			switch {
			case complexity < 1.0:
				reviews = s.between(0, 2)
			case complexity < 2.0:
				reviews = s.between(1, 4)
			default:
				reviews = s.between(2, 7)
			}

			changedFiles := int(s.longTail(1, 50, 1.5))
			baseLines := float64(changedFiles * s.between(5, 50))
			additions := int(baseLines * s.uniform(0.5, 1.5))
			deletions := int(baseLines * s.uniform(0.2, 1.0))

			issueKey := ""
			linkProb := 0.7
			if changedFiles > 10 {
				linkProb += 0.2
			}
			if keys := st.issueKeysByRepo[repo]; len(keys) > 0 && s.float() < linkProb {
				issueKey = choice(s, keys)
			}

			team := teamForRepo(s, repo)
			members := st.membersOf[team]
			sizeFactor := float64(changedFiles)/10.0 - 1.0
			author := memberWeighted(s, members, func(name string) float64 {
				c := st.chars[name]
				return max(0.1, c.activity*(1+sizeFactor*(c.sizePreference-1)))
			})

			commentFactor := complexity
			if changedFiles > 10 {
				commentFactor *= 1.5
			}
			comments := max(0, int(s.normal(3, 3)*commentFactor))

			title := fmt.Sprintf("%s %s in %s", choice(s, prVerbs), choice(s, prTargets), repo)
			if issueKey != "" {
				title = fmt.Sprintf("[%s] %s", issueKey, title)
			}

			pr := &record.PullRequest{
				PRID:         prID,
				Repo:         st.repoPath(repo),
				Title:        title,
				Author:       author,
				CreatedAt:    record.NewTime(created),
				ClosedAt:     closedAt,
				MergedAt:     mergedAt,
				State:        state,
				ReviewCount:  reviews,
				CommentCount: comments,
				Additions:    additions,
				Deletions:    deletions,
				ChangedFiles: changedFiles,
			}
			if err := b.add(ctx, pr); err != nil {
				return err
			}

			st.prIDsByRepo[repo] = append(st.prIDsByRepo[repo], prID)
			st.prAuthors[prID] = author
			if issueKey != "" {
				st.prIssueKey[prID] = issueKey
			}
		}
	}
	return nil
}
