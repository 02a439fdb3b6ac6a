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
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// Workflow type mix: mostly light CI, some test suites, fewer
// deployments. Each type has its own execution-time tail.
const (
	workflowLightCI = "light_ci"
	workflowMedium  = "medium_test"
	workflowHeavy   = "heavy_deployment"
)

var (
	workflowTypes       = []string{workflowLightCI, workflowMedium, workflowHeavy}
	workflowTypeWeights = []float64{0.5, 0.3, 0.2}
)

// workflowCategories names runs per category; the per-type weights
// below pick the category. Ordered slices keep the seeded stream
// deterministic.
var workflowCategories = []struct {
	name     string
	subtypes []string
}{
	{"CI", []string{"Build", "Test", "Lint", "Validate", "Verify"}},
	{"Deploy", []string{"Deploy to Dev", "Deploy to Staging", "Deploy to Production", "Release"}},
	{"Test", []string{"Unit Tests", "Integration Tests", "E2E Tests", "Acceptance Tests", "Performance Tests"}},
	{"Checks", []string{"Security Scan", "Dependency Check", "Code Quality", "Coverage"}},
}

var categoryWeightsByType = map[string][]float64{
	workflowLightCI: {0.6, 0.1, 0.2, 0.1},
	workflowMedium:  {0.3, 0.1, 0.5, 0.1},
	workflowHeavy:   {0.2, 0.6, 0.1, 0.1},
}

var (
	githubRunners = []string{"ubuntu-latest", "windows-latest", "macos-latest"}
	customRunners = []string{"custom-runner-1", "custom-runner-2", "custom-large-runner"}

	deployHours = []int{6, 7, 8, 17, 18, 19}

	stockBranches = buildStockBranches()
)

// buildStockBranches weights the base branches the way real repos
// skew: main dominates, a handful of long-lived feature branches trail.
func buildStockBranches() []string {
	out := make([]string, 0, 41)
	add := func(name string, n int) {
		for i := 0; i < n; i++ {
			out = append(out, name)
		}
	}
	add("main", 15)
	add("master", 5)
	add("develop", 8)
	add("staging", 5)
	add("release", 3)
	for i := 0; i < 5; i++ {
		add(fmt.Sprintf("feature-%d", i), 1)
	}
	return out
}

// Success-rate regimes. Each repo rolls one regime for the whole
// simulated year so its CI health chart tells a story instead of
// hovering at a constant rate.
const (
	regimeImproving   = "improving"
	regimeDegrading   = "degrading"
	regimeStable      = "stable"
	regimeFluctuating = "fluctuating"
	regimeStepChange  = "step_change"
)

var regimes = []string{
	regimeImproving, regimeDegrading, regimeStable, regimeFluctuating, regimeStepChange,
}

// successRegime fixes a repo's success-rate curve over the timeline.
type successRegime struct {
	trend      string
	start, end float64

	// stepPoint is the timeline fraction where a step change lands.
	stepPoint float64

	// phase and cycles shape the fluctuating sine.
	phase, cycles float64
}

func rollRegime(s *sampler) successRegime {
	r := successRegime{
		trend:     choice(s, regimes),
		stepPoint: s.uniform(0.3, 0.7),
		phase:     s.uniform(0, 2*math.Pi),
		cycles:    3 + s.uniform(0, 2),
	}
	switch r.trend {
	case regimeImproving:
		r.start = 0.6 + s.uniform(0, 0.2)
		r.end = 0.8 + s.uniform(0, 0.15)
	case regimeDegrading:
		r.start = 0.8 + s.uniform(0, 0.15)
		r.end = 0.6 + s.uniform(0, 0.2)
	case regimeStepChange:
		if s.float() < 0.5 {
			r.start = 0.65 + s.uniform(-0.1, 0.1)
			r.end = 0.85 + s.uniform(-0.05, 0.1)
		} else {
			r.start = 0.85 + s.uniform(-0.05, 0.1)
			r.end = 0.65 + s.uniform(-0.1, 0.1)
		}
	default: // stable and fluctuating hover around a midpoint
		mid := 0.75 + s.uniform(-0.1, 0.1)
		r.start, r.end = mid, mid
	}
	return r
}

// rateAt evaluates the regime at a timeline position in [0, 1].
// Stable regimes add per-run jitter; step changes blend linearly over
// a short window around the step instead of jumping.
func (r successRegime) rateAt(pos float64, s *sampler) float64 {
	var rate float64
	switch r.trend {
	case regimeImproving, regimeDegrading:
		rate = r.start + (r.end-r.start)*pos
	case regimeFluctuating:
		rate = r.start + 0.15*math.Sin(r.phase+r.cycles*2*math.Pi*pos)
	case regimeStepChange:
		switch {
		case pos < r.stepPoint:
			rate = r.start
		case pos < r.stepPoint+0.05:
			blend := (pos - r.stepPoint) / 0.05
			rate = r.start*(1-blend) + r.end*blend
		default:
			rate = r.end
		}
	default:
		rate = r.start + s.uniform(-0.05, 0.05)
	}
	return clampFloat(rate, 0.5, 0.98)
}

// generateWorkflowRuns writes RunsPerRepo CI runs per repository.
//
// Pickup and execution times follow long-tail distributions per
// workflow type; conclusions follow the repo's success regime with
// runner-specific reliability quirks layered on top. Durations are
// recomputed from the timestamps by Normalize on write, so pickup and
// execution always equal their timestamp deltas.
func (g *Generator) generateWorkflowRuns(ctx context.Context, st *orgState, b *batcher) error {
	s := g.s
	span := g.cfg.End.Sub(g.cfg.Start).Seconds()
	for _, repo := range repoNames {
		prIDs := st.prIDsByRepo[repo]
		regime := rollRegime(s)
		g.log.Debug("workflow success regime",
			slog.String("repo", repo),
			slog.String("trend", regime.trend))

		for i := 0; i < g.cfg.RunsPerRepo; i++ {
			created := s.date(g.cfg.Start, g.cfg.End, true)

			wfType := weightedChoice(s, workflowTypes, workflowTypeWeights)
			if wfType == workflowHeavy {
				created = s.withHour(created, choice(s, deployHours))
			} else {
				created = s.withHour(created, s.businessHour())
			}

			pos := created.Sub(g.cfg.Start).Seconds() / span
			rate := regime.rateAt(clampFloat(pos, 0, 1), s)

			pickup := s.longTail(0.1, 1800, 1.2)
			var execution float64
			switch wfType {
			case workflowLightCI:
				execution = s.longTail(15, 1800, 1.5)
			case workflowMedium:
				execution = s.longTail(180, 3600, 1.3)
			default:
				execution = s.longTail(300, 7200, 1.1)
			}
			startedAt := created.Add(time.Duration(pickup * float64(time.Second)))
			completedAt := startedAt.Add(time.Duration(execution * float64(time.Second)))

			conclusion := weightedChoice(s, []string{
				record.ConclusionSuccess,
				record.ConclusionFailure,
				record.ConclusionCancelled,
				record.ConclusionTimedOut,
			}, []float64{rate, (1 - rate) * 0.7, (1 - rate) * 0.2, (1 - rate) * 0.1})

			// Long runs fail more than the regime alone predicts.
			if execution > 1800 && conclusion == record.ConclusionSuccess && s.float() < 0.3 {
				conclusion = record.ConclusionFailure
			}

			runnerType := record.RunnerGitHubHosted
			var runnerName string
			if s.float() < 0.5 {
				runnerName = choice(s, githubRunners)
				if runnerName == "windows-latest" && conclusion == record.ConclusionSuccess && s.float() < 0.15 {
					conclusion = choice(s, []string{record.ConclusionFailure, record.ConclusionTimedOut})
				}
			} else {
				runnerType = record.RunnerSelfHosted
				runnerName = choice(s, customRunners)
				if runnerName == "custom-runner-1" && conclusion == record.ConclusionSuccess && s.float() < 0.1 {
					conclusion = record.ConclusionFailure
				}
			}

			linkProb := 0.7
			if repo == "frontend" {
				linkProb -= 0.1
			}
			if wfType == workflowHeavy {
				linkProb -= 0.2
			}
			prID := int64(0)
			if len(prIDs) > 0 && s.float() < linkProb {
				prID = choice(s, prIDs)
			}

			run := &record.WorkflowRun{
				RunID:        int64(s.rng.Uint64() % 10_000_000_000),
				Repo:         st.repoPath(repo),
				WorkflowName: g.workflowName(repo, wfType),
				CreatedAt:    record.NewTime(created),
				StartedAt:    record.TimePtr(startedAt),
				CompletedAt:  record.TimePtr(completedAt),
				Conclusion:   conclusion,
				RunnerName:   runnerName,
				RunnerType:   runnerType,
				Branch:       g.branchName(prID),
			}
			if err := b.add(ctx, run); err != nil {
				return err
			}
		}
	}
	return nil
}

// businessHour samples hours the way office-pattern developers work;
// CI load follows the people who push.
func (s *sampler) businessHour() int {
	if s.float() < 0.8 {
		return s.between(9, 17)
	}
	return choice(s, offHours)
}

// branchName picks a branch: runs linked to a pull request usually
// ride a feature branch, the rest land on the long-lived branches.
func (g *Generator) branchName(prID int64) string {
	s := g.s
	if prID != 0 && s.float() < 0.8 {
		switch s.intn(4) {
		case 0:
			return fmt.Sprintf("feature/PR-%d", prID)
		case 1:
			return fmt.Sprintf("feature/%s-%s-%d",
				choice(s, []string{"add", "fix", "update"}),
				choice(s, []string{"auth", "ui", "api", "docs"}), prID)
		case 2:
			return fmt.Sprintf("bugfix/issue-%d", s.between(100, 999))
		default:
			return fmt.Sprintf("user/%s/%s-%d",
				choice(s, []string{"dev", "jsmith", "apatterson"}),
				choice(s, []string{"feature", "fix", "refactor"}), s.between(1, 99))
		}
	}
	return choice(s, stockBranches)
}

// workflowName renders "Repo Category: Subtype", sometimes prefixed
// with a team name.
func (g *Generator) workflowName(repo, wfType string) string {
	s := g.s
	idx := s.weightedIndex(categoryWeightsByType[wfType])
	category := workflowCategories[idx]
	subtype := choice(s, category.subtypes)

	prefix := ""
	if s.float() < 0.3 {
		prefix = teamSpecs[s.intn(len(teamSpecs))].name + ": "
	}
	return fmt.Sprintf("%s%s %s: %s", prefix, capitalize(repo), category.name, subtype)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
