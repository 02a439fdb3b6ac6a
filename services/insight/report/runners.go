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

const topRunnerRows = 10

// RunnerTypeStat aggregates one runner type (github-hosted or
// self-hosted).
type RunnerTypeStat struct {
	Type        string  `json:"type"`
	Runs        int     `json:"runs"`
	SuccessRate float64 `json:"success_rate"`

	// AvgExecutionSeconds covers runs with a known execution time.
	AvgExecutionSeconds float64 `json:"avg_execution_seconds"`
}

// BranchStat is one branch's success record.
type BranchStat struct {
	Branch      string  `json:"branch"`
	Runs        int     `json:"runs"`
	Succeeded   int     `json:"succeeded"`
	SuccessRate float64 `json:"success_rate"`
}

// WorkflowStat is one workflow's execution cost.
type WorkflowStat struct {
	Workflow            string  `json:"workflow"`
	Runs                int     `json:"runs"`
	AvgExecutionSeconds float64 `json:"avg_execution_seconds"`
}

// RunnerPage is the runner-performance dashboard page.
type RunnerPage struct {
	// Timeframe is the window the page covers.
	Timeframe Timeframe `json:"timeframe"`

	// Total counts workflow runs created in the window; Succeeded is
	// the subset that concluded success.
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`

	// SuccessRate is Succeeded over Total, 0 when Total is 0.
	SuccessRate float64 `json:"success_rate"`

	// AvgPickupSeconds and AvgExecutionSeconds are means over runs
	// with the respective duration present.
	AvgPickupSeconds    float64 `json:"avg_pickup_seconds"`
	AvgExecutionSeconds float64 `json:"avg_execution_seconds"`

	// ByType splits the runs by runner type, sorted by run count.
	ByType []RunnerTypeStat `json:"by_type"`

	// SuccessByBranch ranks the busiest branches, at most ten.
	SuccessByBranch []BranchStat `json:"success_by_branch"`

	// ExecutionByWorkflow ranks the busiest workflows, at most ten.
	ExecutionByWorkflow []WorkflowStat `json:"execution_by_workflow"`

	// DailyPickup is the mean pickup per day. Days without runs carry
	// no sample and are omitted rather than zero-filled.
	DailyPickup []DailyPoint `json:"daily_pickup"`

	// PickupTrend fits the daily pickup means.
	PickupTrend *trend.Trend `json:"pickup_trend"`
}

type runnerAccum struct {
	runs      int
	succeeded int
	execSum   float64
	execRuns  int
}

// BuildRunnerPage aggregates workflow-run performance over the
// timeframe.
func BuildRunnerPage(runs []*record.WorkflowRun, tf Timeframe, now time.Time) *RunnerPage {
	w := tf.Window(now)
	page := &RunnerPage{Timeframe: tf}

	var pickupSum, execSum float64
	var pickupRuns, execRuns int
	byType := make(map[string]*runnerAccum)
	byBranch := make(map[string]*runnerAccum)
	byWorkflow := make(map[string]*runnerAccum)
	pickupDaySum := make(map[time.Time]float64)
	pickupDayRuns := make(map[time.Time]int)

	for _, run := range runs {
		if run == nil || !w.Contains(run.CreatedAt.Time) {
			continue
		}
		page.Total++
		success := run.Conclusion == record.ConclusionSuccess
		if success {
			page.Succeeded++
		}

		if run.PickupSeconds != nil {
			pickupSum += *run.PickupSeconds
			pickupRuns++
			day := dayStart(run.CreatedAt.Time)
			pickupDaySum[day] += *run.PickupSeconds
			pickupDayRuns[day]++
		}
		if run.ExecutionSeconds != nil {
			execSum += *run.ExecutionSeconds
			execRuns++
		}

		accumRun(byType, run.RunnerType, success, run.ExecutionSeconds)
		accumRun(byBranch, run.Branch, success, nil)
		accumRun(byWorkflow, run.WorkflowName, success, run.ExecutionSeconds)
	}

	page.SuccessRate = ratio(page.Succeeded, page.Total)
	if pickupRuns > 0 {
		page.AvgPickupSeconds = pickupSum / float64(pickupRuns)
	}
	if execRuns > 0 {
		page.AvgExecutionSeconds = execSum / float64(execRuns)
	}

	page.ByType = typeStats(byType)
	page.SuccessByBranch = branchStats(byBranch)
	page.ExecutionByWorkflow = workflowStats(byWorkflow)

	dailyMean := make(map[time.Time]float64, len(pickupDaySum))
	for day, sum := range pickupDaySum {
		dailyMean[day] = sum / float64(pickupDayRuns[day])
	}
	var points []trend.Point
	page.DailyPickup, points = sparseSeries(dailyMean)
	page.PickupTrend = trend.Fit(points, nil)
	return page
}

func accumRun(acc map[string]*runnerAccum, key string, success bool, execSeconds *float64) {
	if key == "" {
		return
	}
	a := acc[key]
	if a == nil {
		a = &runnerAccum{}
		acc[key] = a
	}
	a.runs++
	if success {
		a.succeeded++
	}
	if execSeconds != nil {
		a.execSum += *execSeconds
		a.execRuns++
	}
}

func typeStats(acc map[string]*runnerAccum) []RunnerTypeStat {
	out := make([]RunnerTypeStat, 0, len(acc))
	for name, a := range acc {
		stat := RunnerTypeStat{
			Type:        name,
			Runs:        a.runs,
			SuccessRate: ratio(a.succeeded, a.runs),
		}
		if a.execRuns > 0 {
			stat.AvgExecutionSeconds = a.execSum / float64(a.execRuns)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func branchStats(acc map[string]*runnerAccum) []BranchStat {
	out := make([]BranchStat, 0, len(acc))
	for name, a := range acc {
		out = append(out, BranchStat{
			Branch:      name,
			Runs:        a.runs,
			Succeeded:   a.succeeded,
			SuccessRate: ratio(a.succeeded, a.runs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Branch < out[j].Branch
	})
	if len(out) > topRunnerRows {
		out = out[:topRunnerRows]
	}
	return out
}

func workflowStats(acc map[string]*runnerAccum) []WorkflowStat {
	out := make([]WorkflowStat, 0, len(acc))
	for name, a := range acc {
		stat := WorkflowStat{Workflow: name, Runs: a.runs}
		if a.execRuns > 0 {
			stat.AvgExecutionSeconds = a.execSum / float64(a.execRuns)
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return out[i].Workflow < out[j].Workflow
	})
	if len(out) > topRunnerRows {
		out = out[:topRunnerRows]
	}
	return out
}
