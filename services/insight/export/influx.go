// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export pushes computed report series to external sinks: daily
// series as InfluxDB points and store backups as GCS objects.
//
// Exports are pull-shaped: callers build the report pages they want
// shipped and hand them over as a Snapshot. The package never reads the
// store itself.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"golang.org/x/sync/errgroup"

	"github.com/devpulsehq/devpulse/services/insight/report"
)

const (
	// healthRetries bounds the startup wait for InfluxDB.
	healthRetries = 10

	// healthRetryDelay is the pause between health probes.
	healthRetryDelay = 3 * time.Second
)

// InfluxConfig locates the target InfluxDB instance. The token travels
// separately so it can stay in the secrets vault until dial time.
type InfluxConfig struct {
	URL    string `json:"url"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxWriter ships report series to one org/bucket pair.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewInfluxWriter connects to InfluxDB and waits for it to report
// healthy. The health probe retries up to healthRetries times before
// giving up, so a writer created right after `docker compose up` still
// comes up cleanly.
func NewInfluxWriter(ctx context.Context, cfg InfluxConfig, token string, logger *slog.Logger) (*InfluxWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if token == "" {
		return nil, fmt.Errorf("influx token is required")
	}

	client := influxdb2.NewClient(cfg.URL, token)

	var ready bool
	for i := 0; i < healthRetries; i++ {
		health, err := client.Health(ctx)
		if err == nil && health.Status == "pass" {
			ready = true
			break
		}

		var errMsg string
		if err != nil {
			errMsg = err.Error()
		} else if health != nil && health.Message != nil {
			errMsg = *health.Message
		}
		logger.Warn("InfluxDB not ready, retrying...", "attempt", i+1, "error", errMsg)

		select {
		case <-ctx.Done():
			client.Close()
			return nil, fmt.Errorf("waiting for influxdb: %w", ctx.Err())
		case <-time.After(healthRetryDelay):
		}
	}
	if !ready {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s not healthy after %d attempts", cfg.URL, healthRetries)
	}

	logger.Info("Connected to InfluxDB", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)

	return &InfluxWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger,
	}, nil
}

// Close releases the underlying HTTP client.
func (w *InfluxWriter) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Snapshot bundles the computed pages for one export run. Nil pages are
// skipped, so callers can ship a subset.
type Snapshot struct {
	Timeframe report.Timeframe
	PRs       *report.PRPage
	Issues    *report.IssuePage
	Commits   *report.CommitPage
	Runners   *report.RunnerPage
}

// WriteSnapshot writes every daily series in the snapshot plus one
// summary point carrying the page totals. Series are written
// concurrently; the reported count is the number of points handed to
// the write API.
func (w *InfluxWriter) WriteSnapshot(ctx context.Context, snap Snapshot) (int, error) {
	groups := [][]*write.Point{
		prPoints(snap.Timeframe, snap.PRs),
		issuePoints(snap.Timeframe, snap.Issues),
		commitPoints(snap.Timeframe, snap.Commits),
		runnerPoints(snap.Timeframe, snap.Runners),
		summaryPoints(snap, time.Now().UTC()),
	}

	total := 0
	eg, egctx := errgroup.WithContext(ctx)
	for _, pts := range groups {
		if len(pts) == 0 {
			continue
		}
		total += len(pts)
		pts := pts
		eg.Go(func() error {
			return w.writeAPI.WritePoint(egctx, pts...)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("write points: %w", err)
	}

	w.logger.Info("Exported report snapshot to InfluxDB",
		"timeframe", snap.Timeframe,
		"points", total,
	)
	return total, nil
}

// dayTime parses a series date back into its day timestamp.
func dayTime(date string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", date)
	return t, err == nil
}

func seriesTags(tf report.Timeframe) map[string]string {
	return map[string]string{"timeframe": string(tf)}
}

func prPoints(tf report.Timeframe, page *report.PRPage) []*write.Point {
	if page == nil {
		return nil
	}
	tags := seriesTags(tf)
	pts := make([]*write.Point, 0, len(page.DailyThroughput))
	for _, dp := range page.DailyThroughput {
		ts, ok := dayTime(dp.Date)
		if !ok {
			continue
		}
		pts = append(pts, influxdb2.NewPoint(
			"pr_throughput",
			tags,
			map[string]interface{}{"merged": dp.Value},
			ts,
		))
	}
	return pts
}

func issuePoints(tf report.Timeframe, page *report.IssuePage) []*write.Point {
	if page == nil || page.Backlog == nil {
		return nil
	}
	tags := seriesTags(tf)
	pts := make([]*write.Point, 0, len(page.Backlog.Days))
	for _, bp := range page.Backlog.Days {
		ts, ok := dayTime(bp.Date)
		if !ok {
			continue
		}
		pts = append(pts, influxdb2.NewPoint(
			"issue_backlog",
			tags,
			map[string]interface{}{
				"opened": bp.Opened,
				"closed": bp.Closed,
			},
			ts,
		))
	}
	return pts
}

func commitPoints(tf report.Timeframe, page *report.CommitPage) []*write.Point {
	if page == nil {
		return nil
	}
	tags := seriesTags(tf)
	pts := make([]*write.Point, 0, len(page.DailyCounts)+len(page.DailyChurn))
	for _, dp := range page.DailyCounts {
		ts, ok := dayTime(dp.Date)
		if !ok {
			continue
		}
		pts = append(pts, influxdb2.NewPoint(
			"commit_count",
			tags,
			map[string]interface{}{"commits": dp.Value},
			ts,
		))
	}
	for _, cp := range page.DailyChurn {
		ts, ok := dayTime(cp.Date)
		if !ok {
			continue
		}
		pts = append(pts, influxdb2.NewPoint(
			"commit_churn",
			tags,
			map[string]interface{}{
				"additions": cp.Additions,
				"deletions": cp.Deletions,
				"net":       cp.Net,
			},
			ts,
		))
	}
	return pts
}

func runnerPoints(tf report.Timeframe, page *report.RunnerPage) []*write.Point {
	if page == nil {
		return nil
	}
	tags := seriesTags(tf)
	pts := make([]*write.Point, 0, len(page.DailyPickup))
	for _, dp := range page.DailyPickup {
		ts, ok := dayTime(dp.Date)
		if !ok {
			continue
		}
		pts = append(pts, influxdb2.NewPoint(
			"runner_pickup",
			tags,
			map[string]interface{}{"seconds": dp.Value},
			ts,
		))
	}
	return pts
}

// summaryPoints flattens the page totals into a single point stamped at
// export time, for dashboards that chart run-over-run movement.
func summaryPoints(snap Snapshot, now time.Time) []*write.Point {
	fields := map[string]interface{}{}
	if snap.PRs != nil {
		fields["pr_total"] = snap.PRs.Total
		fields["pr_merge_rate"] = snap.PRs.MergeRate
	}
	if snap.Issues != nil {
		fields["issue_total"] = snap.Issues.Total
		fields["issue_resolved"] = snap.Issues.Resolved
	}
	if snap.Commits != nil {
		fields["commit_total"] = snap.Commits.Total
		fields["net_lines"] = snap.Commits.NetLines
	}
	if snap.Runners != nil {
		fields["runner_total"] = snap.Runners.Total
		fields["runner_success_rate"] = snap.Runners.SuccessRate
	}
	if len(fields) == 0 {
		return nil
	}
	return []*write.Point{influxdb2.NewPoint(
		"report_summary",
		seriesTags(snap.Timeframe),
		fields,
		now,
	)}
}
