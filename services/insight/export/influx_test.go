// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/devpulsehq/devpulse/services/insight/report"
)

// --- Mock InfluxDB WriteAPI ---

type MockWriteAPI struct {
	mu             sync.Mutex
	WritePointFunc func(ctx context.Context, point ...*write.Point) error
	WrittenPoints  []*write.Point
}

func (m *MockWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	m.mu.Lock()
	m.WrittenPoints = append(m.WrittenPoints, point...)
	m.mu.Unlock()
	if m.WritePointFunc != nil {
		return m.WritePointFunc(ctx, point...)
	}
	return nil
}

func (m *MockWriteAPI) WriteRecord(ctx context.Context, line ...string) error {
	return nil
}

func (m *MockWriteAPI) EnableBatching()                 {}
func (m *MockWriteAPI) Flush(ctx context.Context) error { return nil }

func (m *MockWriteAPI) points() []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*write.Point(nil), m.WrittenPoints...)
}

// --- Test Fixtures ---

func testSnapshot() Snapshot {
	return Snapshot{
		Timeframe: report.Timeframe30Days,
		PRs: &report.PRPage{
			Timeframe: report.Timeframe30Days,
			Total:     10,
			Merged:    6,
			MergeRate: 0.6,
			DailyThroughput: []report.DailyPoint{
				{Date: "2026-08-01", Value: 2},
				{Date: "2026-08-02", Value: 4},
			},
		},
		Issues: &report.IssuePage{
			Timeframe: report.Timeframe30Days,
			Total:     8,
			Resolved:  5,
			Backlog: &report.BacklogGrowth{
				Days: []report.BacklogPoint{
					{Date: "2026-08-01", Opened: 3, Closed: 1},
					{Date: "2026-08-02", Opened: 5, Closed: 4},
				},
			},
		},
		Commits: &report.CommitPage{
			Timeframe: report.Timeframe30Days,
			Total:     20,
			NetLines:  150,
			DailyCounts: []report.DailyPoint{
				{Date: "2026-08-01", Value: 12},
				{Date: "2026-08-02", Value: 8},
			},
			DailyChurn: []report.ChurnPoint{
				{Date: "2026-08-01", Additions: 100, Deletions: 40, Net: 60},
				{Date: "2026-08-02", Additions: 120, Deletions: 30, Net: 90},
			},
		},
		Runners: &report.RunnerPage{
			Timeframe:   report.Timeframe30Days,
			Total:       15,
			SuccessRate: 0.8,
			DailyPickup: []report.DailyPoint{
				{Date: "2026-08-01", Value: 12.5},
			},
		},
	}
}

func fieldMap(p *write.Point) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	return fields
}

// --- Point Builder Tests ---

func TestPRPoints(t *testing.T) {
	snap := testSnapshot()
	pts := prPoints(snap.Timeframe, snap.PRs)

	if len(pts) != 2 {
		t.Fatalf("prPoints returned %d points, want 2", len(pts))
	}
	if pts[0].Name() != "pr_throughput" {
		t.Errorf("measurement = %q, want %q", pts[0].Name(), "pr_throughput")
	}
	wantTime := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !pts[0].Time().Equal(wantTime) {
		t.Errorf("point time = %v, want %v", pts[0].Time(), wantTime)
	}
	if got := fieldMap(pts[0])["merged"]; got != float64(2) {
		t.Errorf("merged field = %v, want 2", got)
	}
}

func TestPRPoints_NilPage(t *testing.T) {
	if pts := prPoints(report.Timeframe30Days, nil); pts != nil {
		t.Errorf("nil page should produce nil points, got %d", len(pts))
	}
}

func TestPRPoints_TimeframeTag(t *testing.T) {
	snap := testSnapshot()
	pts := prPoints(snap.Timeframe, snap.PRs)

	if len(pts) == 0 {
		t.Fatal("expected points")
	}
	var tag string
	for _, tg := range pts[0].TagList() {
		if tg.Key == "timeframe" {
			tag = tg.Value
		}
	}
	if tag != "30d" {
		t.Errorf("timeframe tag = %q, want %q", tag, "30d")
	}
}

func TestIssuePoints(t *testing.T) {
	snap := testSnapshot()
	pts := issuePoints(snap.Timeframe, snap.Issues)

	if len(pts) != 2 {
		t.Fatalf("issuePoints returned %d points, want 2", len(pts))
	}
	if pts[0].Name() != "issue_backlog" {
		t.Errorf("measurement = %q, want %q", pts[0].Name(), "issue_backlog")
	}
	fields := fieldMap(pts[1])
	if fields["opened"] != int64(5) {
		t.Errorf("opened field = %v, want 5", fields["opened"])
	}
	if fields["closed"] != int64(4) {
		t.Errorf("closed field = %v, want 4", fields["closed"])
	}
}

func TestIssuePoints_NilBacklog(t *testing.T) {
	page := &report.IssuePage{Timeframe: report.Timeframe30Days, Total: 3}
	if pts := issuePoints(report.Timeframe30Days, page); pts != nil {
		t.Errorf("nil backlog should produce nil points, got %d", len(pts))
	}
}

func TestCommitPoints(t *testing.T) {
	snap := testSnapshot()
	pts := commitPoints(snap.Timeframe, snap.Commits)

	if len(pts) != 4 {
		t.Fatalf("commitPoints returned %d points, want 4 (2 counts + 2 churn)", len(pts))
	}

	names := make(map[string]int)
	for _, p := range pts {
		names[p.Name()]++
	}
	if names["commit_count"] != 2 || names["commit_churn"] != 2 {
		t.Errorf("measurement split = %v, want 2 commit_count + 2 commit_churn", names)
	}

	// Churn points carry the full line movement
	for _, p := range pts {
		if p.Name() != "commit_churn" {
			continue
		}
		fields := fieldMap(p)
		for _, key := range []string{"additions", "deletions", "net"} {
			if _, ok := fields[key]; !ok {
				t.Errorf("churn point missing field %q", key)
			}
		}
		break
	}
}

func TestRunnerPoints(t *testing.T) {
	snap := testSnapshot()
	pts := runnerPoints(snap.Timeframe, snap.Runners)

	if len(pts) != 1 {
		t.Fatalf("runnerPoints returned %d points, want 1", len(pts))
	}
	if pts[0].Name() != "runner_pickup" {
		t.Errorf("measurement = %q, want %q", pts[0].Name(), "runner_pickup")
	}
	if got := fieldMap(pts[0])["seconds"]; got != 12.5 {
		t.Errorf("seconds field = %v, want 12.5", got)
	}
}

func TestPoints_SkipUnparseableDates(t *testing.T) {
	page := &report.PRPage{
		DailyThroughput: []report.DailyPoint{
			{Date: "not-a-date", Value: 1},
			{Date: "2026-08-01", Value: 2},
		},
	}
	pts := prPoints(report.Timeframe30Days, page)
	if len(pts) != 1 {
		t.Errorf("bad dates should be skipped, got %d points, want 1", len(pts))
	}
}

func TestSummaryPoints(t *testing.T) {
	snap := testSnapshot()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	pts := summaryPoints(snap, now)

	if len(pts) != 1 {
		t.Fatalf("summaryPoints returned %d points, want 1", len(pts))
	}
	if pts[0].Name() != "report_summary" {
		t.Errorf("measurement = %q, want %q", pts[0].Name(), "report_summary")
	}
	if !pts[0].Time().Equal(now) {
		t.Errorf("summary time = %v, want export time %v", pts[0].Time(), now)
	}

	fields := fieldMap(pts[0])
	if fields["pr_total"] != int64(10) {
		t.Errorf("pr_total = %v, want 10", fields["pr_total"])
	}
	if fields["runner_success_rate"] != 0.8 {
		t.Errorf("runner_success_rate = %v, want 0.8", fields["runner_success_rate"])
	}
}

func TestSummaryPoints_EmptySnapshot(t *testing.T) {
	pts := summaryPoints(Snapshot{Timeframe: report.Timeframe30Days}, time.Now())
	if pts != nil {
		t.Errorf("empty snapshot should produce no summary point, got %d", len(pts))
	}
}

// --- WriteSnapshot Tests ---

func TestWriteSnapshot_WritesAllSeries(t *testing.T) {
	mock := &MockWriteAPI{}
	w := &InfluxWriter{writeAPI: mock, logger: slog.Default()}

	count, err := w.WriteSnapshot(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	// 2 throughput + 2 backlog + 4 commit + 1 pickup + 1 summary
	if count != 10 {
		t.Errorf("reported count = %d, want 10", count)
	}
	if got := len(mock.points()); got != 10 {
		t.Errorf("written points = %d, want 10", got)
	}

	names := make(map[string]bool)
	for _, p := range mock.points() {
		names[p.Name()] = true
	}
	for _, want := range []string{"pr_throughput", "issue_backlog", "commit_count", "commit_churn", "runner_pickup", "report_summary"} {
		if !names[want] {
			t.Errorf("measurement %q was not written", want)
		}
	}
}

func TestWriteSnapshot_EmptySnapshot(t *testing.T) {
	mock := &MockWriteAPI{}
	w := &InfluxWriter{writeAPI: mock, logger: slog.Default()}

	count, err := w.WriteSnapshot(context.Background(), Snapshot{Timeframe: report.Timeframe30Days})
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if len(mock.points()) != 0 {
		t.Errorf("no points should be written for an empty snapshot")
	}
}

func TestWriteSnapshot_WriteError(t *testing.T) {
	mock := &MockWriteAPI{
		WritePointFunc: func(ctx context.Context, point ...*write.Point) error {
			return errors.New("bucket not found")
		},
	}
	w := &InfluxWriter{writeAPI: mock, logger: slog.Default()}

	_, err := w.WriteSnapshot(context.Background(), testSnapshot())
	if err == nil {
		t.Fatal("WriteSnapshot should surface write errors")
	}
	if !strings.Contains(err.Error(), "write points") {
		t.Errorf("error should mention write points, got: %v", err)
	}
}

// --- NewInfluxWriter Tests ---

func TestNewInfluxWriter_EmptyToken(t *testing.T) {
	_, err := NewInfluxWriter(context.Background(), InfluxConfig{URL: "http://localhost:8086"}, "", nil)
	if err == nil {
		t.Fatal("NewInfluxWriter without token should fail")
	}
	if !strings.Contains(err.Error(), "token") {
		t.Errorf("error should mention the token, got: %v", err)
	}
}

func TestNewInfluxWriter_HealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/health") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"name":"influxdb","status":"pass"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, err := NewInfluxWriter(context.Background(),
		InfluxConfig{URL: srv.URL, Org: "devpulse", Bucket: "metrics"},
		"test-token", nil)
	if err != nil {
		t.Fatalf("NewInfluxWriter against healthy server failed: %v", err)
	}
	defer w.Close()

	if w.writeAPI == nil {
		t.Error("writer should have a write API")
	}
}

func TestNewInfluxWriter_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInfluxWriter(ctx,
		InfluxConfig{URL: srv.URL, Org: "devpulse", Bucket: "metrics"},
		"test-token", nil)
	if err == nil {
		t.Fatal("NewInfluxWriter with canceled context should fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got: %v", err)
	}
}
