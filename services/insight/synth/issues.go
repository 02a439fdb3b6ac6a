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

// Issue types and the vocabulary pools behind titles, labels and
// components. Per-repo weights skew the mix: more stories in frontend,
// more bugs in backend, more tasks and epics in infra.
var (
	issueTypes       = []string{"Bug", "Task", "Story", "Epic"}
	issueTypeWeights = []float64{0.3, 0.4, 0.2, 0.1}
	issueTypesByRepo = map[string][]float64{
		"frontend": {0.25, 0.35, 0.3, 0.1},
		"backend":  {0.35, 0.4, 0.15, 0.1},
		"infra":    {0.3, 0.45, 0.1, 0.15},
	}

	openStatuses      = []string{"To Do", "In Progress", "In Review", "Blocked", "In Testing"}
	openStatusWeights = []float64{0.2, 0.4, 0.2, 0.1, 0.1}
	closedStatuses    = []string{"Done", "Resolved"}
	resolutions       = []string{"Fixed", "Done", "Won't Fix", "Duplicate", "Cannot Reproduce"}

	priorities      = []string{"Highest", "High", "Medium", "Low", "Lowest"}
	priorityWeights = []float64{0.1, 0.2, 0.4, 0.2, 0.1}
	priorityWeightsByType = map[string][]float64{
		"Bug":  {0.2, 0.3, 0.3, 0.1, 0.1},
		"Epic": {0.15, 0.25, 0.35, 0.15, 0.1},
	}

	issueLabelPool = []string{
		"backend", "frontend", "security", "performance", "ux", "documentation",
		"tech-debt", "feature", "enhancement", "critical", "accessibility",
	}
	labelCounts = []int{0, 1, 1, 2, 2, 2, 3, 3, 4}

	componentPool = []string{
		"API", "UI", "Database", "Authentication", "Reporting", "Infrastructure",
		"Frontend", "Backend", "Testing", "Documentation", "Deployment", "Mobile",
	}
	componentCounts = []int{0, 0, 1, 1, 1, 1, 2, 2, 3}

	titlePrefixes = []string{
		"Add", "Fix", "Update", "Implement", "Refactor", "Optimize",
		"Remove", "Investigate", "Improve",
	}
	titleSubjects = []string{
		"functionality", "feature", "component", "module", "integration",
		"API", "UI element", "workflow", "process",
	}
	bugVerbs   = []string{"Fix", "Address", "Resolve"}
	bugObjects = []string{"issue with", "bug in", "problem with"}
)

// generateIssues writes IssuesPerRepo tracker items per repository.
//
// Each issue rolls a complexity factor that drives its lead time, its
// story points and how likely it is to still be open; authorship is
// weighted by team repo focus and per-developer specialization so bug
// fixers collect the bugs.
func (g *Generator) generateIssues(ctx context.Context, st *orgState, b *batcher) error {
	s := g.s
	for rIdx, repo := range repoNames {
		projectKey := projectKeys[repo]
		for i := 0; i < g.cfg.IssuesPerRepo; i++ {
			issueID := int64(i + 1 + rIdx*g.cfg.IssuesPerRepo)
			issueKey := fmt.Sprintf("%s-%d", projectKey, issueID)

			issueType := weightedChoice(s, issueTypes, issueTypeWeightsFor(repo))
			complexity := clampFloat(s.normal(1.0, 0.5)*st.repoComplexity[repo], 0.2, 3.0)

			team := teamForRepo(s, repo)
			members := st.membersOf[team]
			author := memberWeighted(s, members, func(name string) float64 {
				c := st.chars[name]
				w := c.activity
				switch issueType {
				case "Bug":
					w *= c.specialization[taskBugFixing]
				case "Epic":
					w *= c.specialization[taskFeatures]
				}
				return w * (1 + (complexity-1)*(c.complexityPreference-1))
			})

			created := s.date(g.cfg.Start, g.cfg.End, true)
			created = s.withHour(created, s.hourFor(st.chars[author]))

			var leadHours int
			if s.float() < 0.05 {
				leadHours = s.between(240, 720)
			} else {
				leadHours = int(float64(s.between(1, 72)) * complexity)
			}

			numUpdates := max(1, int(s.normal(3, 2)))
			updateHours := 0
			for u := 0; u < numUpdates; u++ {
				updateHours += s.between(1, max(2, leadHours/(numUpdates+1)))
			}
			updated := created.Add(time.Duration(updateHours) * time.Hour)

			closed := s.float() > 0.3+0.1*complexity
			var closedAt *record.Time
			if closed {
				at := created.Add(time.Duration(leadHours) * time.Hour)
				if s.float() < 0.1 {
					at = at.Add(time.Duration(s.between(24, 120)) * time.Hour)
				}
				closedAt = record.TimePtr(at)
			}

			var dueDate *record.Time
			if s.float() > 0.3 {
				days := max(1, int(s.normal(14, 7)))
				dueDate = record.TimePtr(created.AddDate(0, 0, days))
			}

			status := weightedChoice(s, openStatuses, openStatusWeights)
			resolution := ""
			if closed {
				status = choice(s, closedStatuses)
				resolution = choice(s, resolutions)
			}

			prioWeights := priorityWeights
			if w, ok := priorityWeightsByType[issueType]; ok {
				prioWeights = w
			}

			labels := sample(s, issueLabelPool, choice(s, labelCounts))
			components := sample(s, componentPool, choice(s, componentCounts))

			sprint := ""
			if s.float() > 0.25 {
				sprint = g.sprintName()
			}

			storyPoints := 0.0
			if issueType != "Epic" && s.float() > 0.25 {
				switch {
				case complexity < 0.8:
					storyPoints = choice(s, []float64{0.5, 1, 2, 3})
				case complexity < 1.2:
					storyPoints = choice(s, []float64{2, 3, 5, 8})
				default:
					storyPoints = choice(s, []float64{5, 8, 13, 21})
				}
			}

			epicLink := ""
			if issueType != "Epic" && s.float() > 0.4 {
				epicLink = fmt.Sprintf("%s-%d", projectKey, s.between(1, 20))
			}

			assignee := ""
			if s.float() > 0.2 {
				assignee = author
				if s.float() > 0.3 {
					others := withoutMember(members, author)
					if len(others) > 0 {
						assignee = choice(s, others)
					}
				}
			}

			commentFactor := complexity
			switch issueType {
			case "Bug":
				commentFactor *= 1.2
			case "Epic":
				commentFactor *= 1.5
			}
			comments := max(0, int(s.normal(5, 4)*commentFactor))

			issue := &record.Issue{
				IssueKey:     issueKey,
				IssueID:      issueID,
				ProjectKey:   projectKey,
				Repo:         st.repoPath(repo),
				Title:        g.issueTitle(issueType, repo, components),
				Description:  fmt.Sprintf("This is a mock description for issue #%d in %s.\n\nSteps to reproduce:\n1. Step one\n2. Step two\n3. Step three", i, repo),
				IssueType:    issueType,
				Author:       author,
				Assignee:     assignee,
				CreatedAt:    record.NewTime(created),
				UpdatedAt:    record.NewTime(updated),
				ClosedAt:     closedAt,
				DueDate:      dueDate,
				Status:       status,
				Resolution:   resolution,
				Priority:     weightedChoice(s, priorities, prioWeights),
				CommentCount: comments,
				Labels:       labels,
				Components:   components,
				Sprint:       sprint,
				StoryPoints:  storyPoints,
				EpicLink:     epicLink,
			}
			if err := b.add(ctx, issue); err != nil {
				return err
			}
			st.issueKeysByRepo[repo] = append(st.issueKeysByRepo[repo], issueKey)
		}
	}
	return nil
}

func issueTypeWeightsFor(repo string) []float64 {
	if w, ok := issueTypesByRepo[repo]; ok {
		return w
	}
	return issueTypeWeights
}

// issueTitle builds a tracker-style title; bug titles read as
// complaints, everything else as work statements.
func (g *Generator) issueTitle(issueType, repo string, components []string) string {
	subject := choice(g.s, titleSubjects)
	if len(components) > 0 {
		subject = choice(g.s, components)
	}
	if issueType == "Bug" {
		return fmt.Sprintf("%s: %s %s %s in %s",
			issueType, choice(g.s, bugVerbs), choice(g.s, bugObjects), subject, repo)
	}
	return fmt.Sprintf("%s: %s %s for %s",
		issueType, choice(g.s, titlePrefixes), subject, repo)
}

// sprintName rolls one of three sprint naming conventions.
func (g *Generator) sprintName() string {
	switch g.s.intn(3) {
	case 0:
		return fmt.Sprintf("Sprint %d", g.s.between(10, 40))
	case 1:
		return fmt.Sprintf("Sprint %d-%d", g.s.between(2023, 2024), g.s.between(1, 26))
	default:
		quarter := choice(g.s, []string{"Q1", "Q2", "Q3", "Q4"})
		return fmt.Sprintf("%s-Sprint-%d", quarter, g.s.between(1, 13))
	}
}

func withoutMember(members []string, skip string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != skip {
			out = append(out, m)
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
