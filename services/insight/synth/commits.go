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

// commitCluster is one development burst: commits drawn from it land
// near its center until its budget is spent.
type commitCluster struct {
	center time.Time
	left   int
	spread time.Duration
}

// generateCommits writes CommitsPerRepo commits per repository.
//
// Dates come from 30-100 random bursts instead of a flat spread, so
// activity charts show the lumpy cadence of real development. Commits
// attach to pull requests with a weighting that builds realistic
// batch sizes: PRs with a few commits attract more until they fill up.
func (g *Generator) generateCommits(ctx context.Context, st *orgState, b *batcher) error {
	s := g.s
	for _, repo := range repoNames {
		prIDs := st.prIDsByRepo[repo]
		clusters := g.rollClusters()

		for i := 0; i < g.cfg.CommitsPerRepo; i++ {
			committed := g.clusterDate(clusters)

			prID := int64(0)
			if len(prIDs) > 0 && s.float() < 0.8 {
				if s.float() < 0.7 {
					prID = weightedChoice(s, prIDs, prLinkWeights(st, prIDs))
				} else {
					prID = choice(s, prIDs)
				}
				st.prCommitCount[prID]++
			}

			team := teamForRepo(s, repo)
			members := st.membersOf[team]
			prAuthor := st.prAuthors[prID]
			author := memberWeighted(s, members, func(name string) float64 {
				c := st.chars[name]
				w := c.activity*0.5 + 0.5
				if prID != 0 && name == prAuthor {
					w *= 3.0
				}
				return max(0.1, w)
			})
			committed = s.withHour(committed, s.hourFor(st.chars[author]))

			sizePref := st.chars[author].sizePreference
			additions := int(s.longTail(3, 300, 1.2) * sizePref)
			deletions := int(s.longTail(0, 100, 1.5) * sizePref)
			files := max(1, int(s.normal(3, 2)*sizePref))

			message := g.commitMessage()
			if key, ok := st.prIssueKey[prID]; ok {
				message = fmt.Sprintf("[%s] %s", key, message)
			} else if prID != 0 {
				message = fmt.Sprintf("[PR-%d] %s", prID, message)
			}

			commit := &record.Commit{
				SHA:          g.commitSHA(),
				Repo:         st.repoPath(repo),
				Author:       author,
				Message:      message,
				Date:         record.NewTime(committed),
				Additions:    additions,
				Deletions:    deletions,
				FilesChanged: files,
				PRID:         prID,
			}
			if err := b.add(ctx, commit); err != nil {
				return err
			}
		}
	}
	return nil
}

// rollClusters seeds the per-repo development bursts. Burst sizes sum
// to roughly the repo's commit volume.
func (g *Generator) rollClusters() []commitCluster {
	n := g.s.between(30, 100)
	mean := float64(g.cfg.CommitsPerRepo) / float64(n)
	clusters := make([]commitCluster, n)
	for i := range clusters {
		clusters[i] = commitCluster{
			center: g.s.uniformDate(g.cfg.Start, g.cfg.End),
			left:   max(1, int(g.s.normal(mean, mean/3))),
			spread: time.Duration(g.s.between(1, 72)) * time.Hour,
		}
	}
	return clusters
}

// clusterDate draws a commit date from the bursts, weighted by each
// burst's remaining budget; the pick decrements the budget. When every
// burst is spent the date falls back to a uniform draw.
func (g *Generator) clusterDate(clusters []commitCluster) time.Time {
	s := g.s
	weights := make([]float64, len(clusters))
	total := 0
	for i, c := range clusters {
		if c.left > 0 {
			weights[i] = float64(c.left)
			total += c.left
		}
	}
	if total == 0 {
		return s.biasWeekday(s.uniformDate(g.cfg.Start, g.cfg.End), g.cfg.Start, g.cfg.End)
	}

	idx := s.weightedIndex(weights)
	clusters[idx].left--
	c := clusters[idx]

	spread := c.spread.Hours()
	offset := clampFloat(s.normal(0, spread*0.3), -spread, spread)
	t := c.center.Add(time.Duration(offset * float64(time.Hour)))
	if t.Before(g.cfg.Start) {
		t = g.cfg.Start
	}
	if t.After(g.cfg.End) {
		t = g.cfg.End
	}
	return s.biasWeekday(t, g.cfg.Start, g.cfg.End)
}

// prLinkWeights prefers pull requests with a handful of commits:
// empty PRs get a head start, nearly full ones taper off.
func prLinkWeights(st *orgState, prIDs []int64) []float64 {
	weights := make([]float64, len(prIDs))
	for i, id := range prIDs {
		switch count := st.prCommitCount[id]; {
		case count == 0:
			weights[i] = 3.0
		case count < 5:
			weights[i] = 5.0
		case count < 10:
			weights[i] = 2.0
		default:
			weights[i] = 0.5
		}
	}
	return weights
}

// commitSHA renders a 40-hex-char pseudo commit hash from the seeded
// stream, so a seed reproduces the same identities.
func (g *Generator) commitSHA() string {
	return fmt.Sprintf("%016x%016x%08x", g.s.rng.Uint64(), g.s.rng.Uint64(), uint32(g.s.rng.Uint64()))
}

// Commit message vocabulary, three house styles deep.
var (
	conventionalTypes = []string{"feat", "fix", "docs", "style", "refactor", "test", "chore"}
	conventionalVerbs = []string{"Add", "Update", "Remove", "Fix"}
	conventionalNouns = []string{"feature", "component", "test", "dependency", "documentation"}

	simpleVerbs = []string{"Add", "Fix", "Update", "Implement", "Refactor", "Remove", "Optimize"}
	simpleNouns = []string{"feature", "bug", "performance issue", "UI component", "API endpoint", "documentation", "test"}

	detailedVerbs    = []string{"Added", "Fixed", "Updated", "Implemented", "Refactored"}
	detailedAdjs     = []string{"main", "core", "critical", "optional"}
	detailedNouns    = []string{"feature", "component", "module", "function", "service"}
	detailedPurposes = []string{"better performance", "improved UX", "compatibility", "stability"}
)

// commitMessage rolls one of three message styles: conventional
// commits, a bare verb phrase, or a past-tense sentence.
func (g *Generator) commitMessage() string {
	s := g.s
	switch s.intn(3) {
	case 0:
		scope := ""
		if s.float() < 0.5 {
			scope = "(scope)"
		}
		return fmt.Sprintf("%s%s: %s %s",
			choice(s, conventionalTypes), scope, choice(s, conventionalVerbs), choice(s, conventionalNouns))
	case 1:
		return fmt.Sprintf("%s %s", choice(s, simpleVerbs), choice(s, simpleNouns))
	default:
		article := "the"
		if s.float() < 0.5 {
			article = "a"
		}
		return fmt.Sprintf("%s %s %s %s for %s",
			choice(s, detailedVerbs), article, choice(s, detailedAdjs), choice(s, detailedNouns), choice(s, detailedPurposes))
	}
}
