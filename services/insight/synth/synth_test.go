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
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/store"
)

// memStore captures writes in memory, mirroring the real store's
// normalize-on-write behavior so derived fields look the same as they
// would after a badger round trip.
type memStore struct {
	mu      sync.Mutex
	records map[record.Kind][]record.Record
	batches map[record.Kind][]int
	ops     []string
	failOn  record.Kind
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		records: make(map[record.Kind][]record.Record),
		batches: make(map[record.Kind][]int),
	}
}

func (m *memStore) UpsertBatch(ctx context.Context, kind record.Kind, records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && kind == m.failOn {
		return errors.New("disk full")
	}
	for _, rec := range records {
		if n, ok := rec.(record.Normalizer); ok {
			n.Normalize()
		}
	}
	m.records[kind] = append(m.records[kind], records...)
	m.batches[kind] = append(m.batches[kind], len(records))
	m.ops = append(m.ops, "upsert:"+string(kind))
	return nil
}

func (m *memStore) DeleteAll(ctx context.Context, kind record.Kind) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records[kind])
	delete(m.records, kind)
	m.ops = append(m.ops, "delete:"+string(kind))
	return n, nil
}

func (m *memStore) Fetch(ctx context.Context, kind record.Kind, filter record.Filter) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, len(m.records[kind]))
	copy(out, m.records[kind])
	return out, nil
}

func (m *memStore) DistinctValues(ctx context.Context, kind record.Kind, field string) ([]string, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

// testConfig keeps volumes small enough for fast runs while leaving
// every stage with several batches.
func testConfig(seed uint64) Config {
	return Config{
		OrgName:        "mock-org",
		OrgSize:        24,
		IssuesPerRepo:  30,
		PRsPerRepo:     20,
		CommitsPerRepo: 40,
		RunsPerRepo:    25,
		BatchSize:      16,
		Start:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Seed:           seed,
	}
}

func runGenerator(t *testing.T, cfg Config) (*Summary, *memStore) {
	t.Helper()
	st := newMemStore()
	gen, err := New(st, cfg)
	require.NoError(t, err)
	summary, err := gen.Run(context.Background())
	require.NoError(t, err)
	return summary, st
}

// TestConfigValidate verifies the guard rails on generator config.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty org name", func(c *Config) { c.OrgName = "" }, "org name"},
		{"org too small", func(c *Config) { c.OrgSize = 11 }, "org size"},
		{"negative volume", func(c *Config) { c.IssuesPerRepo = -1 }, "volumes"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch size"},
		{"inverted range", func(c *Config) { c.Start, c.End = c.End, c.Start }, "must precede"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestGeneratorCounts verifies a full run writes the configured volume
// for every record kind.
func TestGeneratorCounts(t *testing.T) {
	summary, st := runGenerator(t, testConfig(7))

	assert.Equal(t, len(teamSpecs), summary.Teams)
	assert.Equal(t, len(repoNames), summary.Repositories)
	assert.Equal(t, 90, summary.Issues)
	assert.Equal(t, 60, summary.PullRequests)
	assert.Equal(t, 120, summary.Commits)
	assert.Equal(t, 75, summary.WorkflowRuns)

	assert.Len(t, st.records[record.KindIssue], 90)
	assert.Len(t, st.records[record.KindPullRequest], 60)
	assert.Len(t, st.records[record.KindCommit], 120)
	assert.Len(t, st.records[record.KindWorkflowRun], 75)
}

// TestGeneratorSeedReproducibility verifies two runs with the same seed
// produce identical per-kind counts and identical team sizes.
func TestGeneratorSeedReproducibility(t *testing.T) {
	first, _ := runGenerator(t, testConfig(42))
	second, _ := runGenerator(t, testConfig(42))

	assert.Equal(t, first.Teams, second.Teams)
	assert.Equal(t, first.Repositories, second.Repositories)
	assert.Equal(t, first.Issues, second.Issues)
	assert.Equal(t, first.PullRequests, second.PullRequests)
	assert.Equal(t, first.Commits, second.Commits)
	assert.Equal(t, first.WorkflowRuns, second.WorkflowRuns)
	assert.Equal(t, first.TeamSizes, second.TeamSizes)
	assert.Equal(t, uint64(42), first.Seed)
}

// TestGeneratorSeedChangesOutput verifies different seeds shuffle the
// allocation instead of replaying it.
func TestGeneratorSeedChangesOutput(t *testing.T) {
	first, firstStore := runGenerator(t, testConfig(1))
	second, secondStore := runGenerator(t, testConfig(2))

	// Volumes are configured, so counts match across seeds.
	assert.Equal(t, first.Issues, second.Issues)

	firstSHAs := make([]string, 0)
	for _, rec := range firstStore.records[record.KindCommit] {
		firstSHAs = append(firstSHAs, rec.(*record.Commit).SHA)
	}
	secondSHAs := make([]string, 0)
	for _, rec := range secondStore.records[record.KindCommit] {
		secondSHAs = append(secondSHAs, rec.(*record.Commit).SHA)
	}
	assert.NotEqual(t, firstSHAs, secondSHAs)
}

// TestGeneratorClearsFirst verifies every kind is dropped before any
// write lands.
func TestGeneratorClearsFirst(t *testing.T) {
	_, st := runGenerator(t, testConfig(3))

	firstUpsert := -1
	lastDelete := -1
	deletes := 0
	for i, op := range st.ops {
		if strings.HasPrefix(op, "upsert:") {
			if firstUpsert == -1 {
				firstUpsert = i
			}
			continue
		}
		lastDelete = i
		deletes++
	}
	assert.Equal(t, len(record.Kinds()), deletes)
	require.NotEqual(t, -1, firstUpsert)
	assert.Less(t, lastDelete, firstUpsert)
}

// TestGeneratorBatching verifies flushes arrive in BatchSize chunks
// with one remainder batch per stage.
func TestGeneratorBatching(t *testing.T) {
	cfg := testConfig(5)
	_, st := runGenerator(t, cfg)

	// 90 issues in batches of 16: five full batches and a remainder.
	batches := st.batches[record.KindIssue]
	require.Len(t, batches, 6)
	for _, n := range batches[:5] {
		assert.Equal(t, cfg.BatchSize, n)
	}
	assert.Equal(t, 10, batches[5])

	// Stages smaller than one batch land in a single flush.
	assert.Equal(t, []int{len(teamSpecs)}, st.batches[record.KindTeam])
	assert.Equal(t, []int{len(repoNames)}, st.batches[record.KindRepository])
}

// TestGeneratorProgressEvents verifies progress is reported per flush
// and reaches each stage's total.
func TestGeneratorProgressEvents(t *testing.T) {
	cfg := testConfig(6)
	var events []Progress
	cfg.OnProgress = func(p Progress) { events = append(events, p) }

	st := newMemStore()
	gen, err := New(st, cfg)
	require.NoError(t, err)
	_, err = gen.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, events)
	finals := make(map[string]Progress)
	for _, ev := range events {
		assert.LessOrEqual(t, ev.Done, ev.Total)
		finals[ev.Stage] = ev
	}
	assert.Equal(t, 90, finals["issues"].Done)
	assert.Equal(t, 90, finals["issues"].Total)
	assert.Equal(t, 75, finals["workflow_runs"].Done)
}

// TestGeneratorCancellation verifies a cancelled context stops the run
// at a batch boundary with a wrapped cancellation error.
func TestGeneratorCancellation(t *testing.T) {
	cfg := testConfig(8)
	ctx, cancel := context.WithCancel(context.Background())
	cfg.OnProgress = func(p Progress) {
		if p.Stage == "issues" {
			cancel()
		}
	}

	st := newMemStore()
	gen, err := New(st, cfg)
	require.NoError(t, err)
	_, err = gen.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing past the cancelled stage was written.
	assert.Empty(t, st.records[record.KindPullRequest])
	assert.Empty(t, st.records[record.KindCommit])
}

// TestGeneratorFailedBatchFatal verifies the first failed insert aborts
// the run and later stages never start.
func TestGeneratorFailedBatchFatal(t *testing.T) {
	cfg := testConfig(9)
	st := newMemStore()
	st.failOn = record.KindPullRequest

	gen, err := New(st, cfg)
	require.NoError(t, err)
	_, err = gen.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull_request")
	assert.Contains(t, err.Error(), "disk full")

	assert.NotEmpty(t, st.records[record.KindIssue])
	assert.Empty(t, st.records[record.KindCommit])
	assert.Empty(t, st.records[record.KindWorkflowRun])
}

// TestGeneratorRandomSeed verifies a zero seed is replaced so the run
// stays reproducible after the fact.
func TestGeneratorRandomSeed(t *testing.T) {
	cfg := testConfig(0)
	gen, err := New(newMemStore(), cfg)
	require.NoError(t, err)
	assert.NotZero(t, gen.cfg.Seed)
}
