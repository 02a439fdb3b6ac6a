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

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// minTeamSize is the floor the allocation never drops a team below.
const minTeamSize = 3

// teamSpec fixes one team's share of the organization and how its work
// spreads across the repositories.
type teamSpec struct {
	name        string
	sizeRange   [2]float64
	repoFocus   map[string]float64
	description string
}

// teamSpecs defines the simulated organization. Order is team ID order.
var teamSpecs = []teamSpec{
	{
		name:        "Frontend",
		sizeRange:   [2]float64{0.15, 0.45},
		repoFocus:   map[string]float64{"frontend": 0.8, "backend": 0.15, "infra": 0.05},
		description: "The Frontend team is responsible for user interfaces and client-side development.",
	},
	{
		name:        "Backend",
		sizeRange:   [2]float64{0.15, 0.45},
		repoFocus:   map[string]float64{"frontend": 0.1, "backend": 0.8, "infra": 0.1},
		description: "The Backend team is responsible for APIs, databases, and server-side logic.",
	},
	{
		name:        "DevOps",
		sizeRange:   [2]float64{0.1, 0.3},
		repoFocus:   map[string]float64{"frontend": 0.05, "backend": 0.15, "infra": 0.8},
		description: "The DevOps team is responsible for infrastructure, CI/CD, and operations.",
	},
	{
		name:        "QA",
		sizeRange:   [2]float64{0.05, 0.2},
		repoFocus:   map[string]float64{"frontend": 0.33, "backend": 0.33, "infra": 0.34},
		description: "The QA team is responsible for quality assurance and testing.",
	},
}

// repoNames in repo ID order. Project keys name the issue tracker
// projects backing each repository.
var (
	repoNames   = []string{"frontend", "backend", "infra"}
	projectKeys = map[string]string{
		"frontend": "FE",
		"backend":  "BE",
		"infra":    "INFRA",
	}
)

// orgState carries identifier handoff between pipeline stages: who is
// on which team, which issues exist per repository, which pull
// requests commits may attach to.
type orgState struct {
	cfg Config

	// authors in username order; chars holds each profile.
	authors []string
	chars   map[string]*character

	// membersOf maps team name to its roster; teamSizes to roster
	// length. Both are fixed before any records are written.
	membersOf map[string][]string
	teamSizes map[string]int

	// repoComplexity shades per-repo issue difficulty.
	repoComplexity map[string]float64

	// Issue handoff: keys by repo, for pull request and epic links.
	issueKeysByRepo map[string][]string

	// Pull request handoff for commit and workflow linking.
	prIDsByRepo   map[string][]int64
	prAuthors     map[int64]string
	prIssueKey    map[int64]string
	prCommitCount map[int64]int
}

// repoPath renders the canonical "<org>/<name>" repo field value.
func (st *orgState) repoPath(name string) string {
	return st.cfg.OrgName + "/" + name
}

// newOrgState rolls the per-run characters and the team allocation
// before any stage writes records, so team sizes are known up front.
func newOrgState(cfg Config, s *sampler) *orgState {
	st := &orgState{
		cfg:             cfg,
		chars:           make(map[string]*character, cfg.OrgSize),
		membersOf:       make(map[string][]string, len(teamSpecs)),
		teamSizes:       make(map[string]int, len(teamSpecs)),
		repoComplexity:  make(map[string]float64, len(repoNames)),
		issueKeysByRepo: make(map[string][]string, len(repoNames)),
		prIDsByRepo:     make(map[string][]int64, len(repoNames)),
		prAuthors:       make(map[int64]string),
		prIssueKey:      make(map[int64]string),
		prCommitCount:   make(map[int64]int),
	}

	st.authors = make([]string, cfg.OrgSize)
	for i := range st.authors {
		name := fmt.Sprintf("dev%d", i+1)
		st.authors[i] = name
		st.chars[name] = newCharacter(s)
	}

	allocateTeams(st, s)

	for _, repo := range repoNames {
		st.repoComplexity[repo] = s.uniform(0.8, 1.2)
	}
	return st
}

// allocateTeams sizes each team from its percentage range, then nudges
// random teams by one member at a time until the sizes sum exactly to
// the org size. Members are dealt from a single shuffle so nobody lands
// on two teams.
func allocateTeams(st *orgState, s *sampler) {
	sizes := make([]int, len(teamSpecs))
	total := 0
	for i, spec := range teamSpecs {
		pct := s.uniform(spec.sizeRange[0], spec.sizeRange[1])
		sizes[i] = max(minTeamSize, int(float64(st.cfg.OrgSize)*pct))
		total += sizes[i]
	}
	for total != st.cfg.OrgSize {
		i := s.intn(len(sizes))
		if total < st.cfg.OrgSize {
			sizes[i]++
			total++
		} else if sizes[i] > minTeamSize {
			sizes[i]--
			total--
		}
	}

	pool := make([]string, len(st.authors))
	copy(pool, st.authors)
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	offset := 0
	for i, spec := range teamSpecs {
		members := make([]string, sizes[i])
		copy(members, pool[offset:offset+sizes[i]])
		offset += sizes[i]
		st.membersOf[spec.name] = members
		st.teamSizes[spec.name] = sizes[i]
	}
}

// generateTeams writes one roster record per team.
func (g *Generator) generateTeams(ctx context.Context, st *orgState, b *batcher) error {
	for i, spec := range teamSpecs {
		created := g.cfg.Start.AddDate(0, 0, -g.s.between(30, 365))
		updated := created.AddDate(0, 0, g.s.between(1, 30))
		team := &record.Team{
			TeamID:      int64(i + 1),
			Name:        spec.name,
			Members:     st.membersOf[spec.name],
			Description: spec.description,
			CreatedAt:   record.NewTime(created),
			UpdatedAt:   record.NewTime(updated),
		}
		if err := b.add(ctx, team); err != nil {
			return err
		}
	}
	return nil
}

// generateRepositories writes the fixed repository set.
func (g *Generator) generateRepositories(ctx context.Context, st *orgState, b *batcher) error {
	for i, name := range repoNames {
		created := g.cfg.Start.AddDate(0, 0, -g.s.between(30, 365))
		updated := created.AddDate(0, 0, g.s.between(1, 30))
		repo := &record.Repository{
			RepoID:      int64(i + 1),
			Name:        name,
			Owner:       g.cfg.OrgName,
			Description: fmt.Sprintf("Repository for %s code and resources.", name),
			CreatedAt:   record.NewTime(created),
			UpdatedAt:   record.NewTime(updated),
		}
		if err := b.add(ctx, repo); err != nil {
			return err
		}
	}
	return nil
}

// teamForRepo picks the authoring team for activity in a repository,
// weighted by each team's focus on that repo.
func teamForRepo(s *sampler, repo string) string {
	weights := make([]float64, len(teamSpecs))
	for i, spec := range teamSpecs {
		weights[i] = spec.repoFocus[repo]
	}
	return teamSpecs[s.weightedIndex(weights)].name
}

// memberWeighted picks a team member with the given per-member weight
// function. Non-positive totals fall back to a uniform pick.
func memberWeighted(s *sampler, members []string, weight func(name string) float64) string {
	weights := make([]float64, len(members))
	for i, name := range members {
		weights[i] = weight(name)
	}
	return members[s.weightedIndex(weights)]
}
