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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// TestGenerateWorkflowRuns verifies every run's derived durations
// equal their timestamp deltas and all categorical fields come from
// the known vocabularies.
func TestGenerateWorkflowRuns(t *testing.T) {
	cfg := testConfig(51)
	_, st := runGenerator(t, cfg)

	recs := st.records[record.KindWorkflowRun]
	require.Len(t, recs, cfg.RunsPerRepo*len(repoNames))

	conclusions := map[string]bool{
		record.ConclusionSuccess:   true,
		record.ConclusionFailure:   true,
		record.ConclusionCancelled: true,
		record.ConclusionTimedOut:  true,
	}
	githubNames := map[string]bool{"ubuntu-latest": true, "windows-latest": true, "macos-latest": true}
	customNames := map[string]bool{"custom-runner-1": true, "custom-runner-2": true, "custom-large-runner": true}

	for _, rec := range recs {
		run, ok := rec.(*record.WorkflowRun)
		require.True(t, ok)

		require.NotNil(t, run.StartedAt)
		require.NotNil(t, run.CompletedAt)
		require.NotNil(t, run.PickupSeconds)
		require.NotNil(t, run.ExecutionSeconds)

		assert.InDelta(t, run.StartedAt.Sub(run.CreatedAt.Time).Seconds(), *run.PickupSeconds, 1e-6)
		assert.InDelta(t, run.CompletedAt.Sub(run.StartedAt.Time).Seconds(), *run.ExecutionSeconds, 1e-6)
		assert.Greater(t, *run.PickupSeconds, 0.0)
		assert.Greater(t, *run.ExecutionSeconds, 0.0)

		assert.True(t, conclusions[run.Conclusion], "unknown conclusion %q", run.Conclusion)
		switch run.RunnerType {
		case record.RunnerGitHubHosted:
			assert.True(t, githubNames[run.RunnerName], "runner %q on %s", run.RunnerName, run.RunnerType)
		case record.RunnerSelfHosted:
			assert.True(t, customNames[run.RunnerName], "runner %q on %s", run.RunnerName, run.RunnerType)
		default:
			t.Fatalf("unknown runner type %q", run.RunnerType)
		}

		assert.NotEmpty(t, run.WorkflowName)
		assert.Contains(t, run.WorkflowName, ": ")
		assert.NotEmpty(t, run.Branch)
		assert.Positive(t, run.RunID)
	}
}

// TestWorkflowRunMix verifies the run mix looks like CI reality:
// successes dominate, failures exist, both runner types show up.
func TestWorkflowRunMix(t *testing.T) {
	cfg := testConfig(52)
	cfg.RunsPerRepo = 200
	_, st := runGenerator(t, cfg)

	byConclusion := make(map[string]int)
	byRunnerType := make(map[string]int)
	for _, rec := range st.records[record.KindWorkflowRun] {
		run := rec.(*record.WorkflowRun)
		byConclusion[run.Conclusion]++
		byRunnerType[run.RunnerType]++
	}

	total := cfg.RunsPerRepo * len(repoNames)
	assert.Greater(t, byConclusion[record.ConclusionSuccess], total/3,
		"success should be the most common conclusion")
	assert.Greater(t, byConclusion[record.ConclusionFailure], 0)
	assert.Greater(t, byRunnerType[record.RunnerGitHubHosted], total/4)
	assert.Greater(t, byRunnerType[record.RunnerSelfHosted], total/4)
}

// TestSuccessRegimeRates verifies every regime clamps into the band
// CI health realistically occupies.
func TestSuccessRegimeRates(t *testing.T) {
	s := newSampler(53)
	for i := 0; i < 50; i++ {
		regime := rollRegime(s)
		for _, pos := range []float64{0, 0.25, 0.5, 0.75, 1} {
			rate := regime.rateAt(pos, s)
			assert.GreaterOrEqual(t, rate, 0.5, "regime %s at %v", regime.trend, pos)
			assert.LessOrEqual(t, rate, 0.98, "regime %s at %v", regime.trend, pos)
		}
	}
}

// TestSuccessRegimeStepChange verifies the step lands between the two
// plateaus with a narrow blend window.
func TestSuccessRegimeStepChange(t *testing.T) {
	s := newSampler(54)
	regime := successRegime{
		trend:     regimeStepChange,
		start:     0.9,
		end:       0.6,
		stepPoint: 0.5,
	}
	assert.InDelta(t, 0.9, regime.rateAt(0.2, s), 1e-9)
	assert.InDelta(t, 0.6, regime.rateAt(0.7, s), 1e-9)

	mid := regime.rateAt(0.525, s)
	assert.Less(t, mid, 0.9)
	assert.Greater(t, mid, 0.6)
}

// TestBranchNames verifies linked runs mostly ride feature branches
// while unlinked runs use the long-lived set.
func TestBranchNames(t *testing.T) {
	cfg := testConfig(55)
	_, st := runGenerator(t, cfg)

	stock := make(map[string]bool, len(stockBranches))
	for _, b := range stockBranches {
		stock[b] = true
	}

	for _, rec := range st.records[record.KindWorkflowRun] {
		run := rec.(*record.WorkflowRun)
		if stock[run.Branch] {
			continue
		}
		ok := false
		for _, prefix := range []string{"feature/", "bugfix/", "user/"} {
			if len(run.Branch) > len(prefix) && run.Branch[:len(prefix)] == prefix {
				ok = true
				break
			}
		}
		assert.True(t, ok, "unexpected branch %q", run.Branch)
	}
}
