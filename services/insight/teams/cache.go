// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package teams

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// Source supplies the current team rosters, typically backed by the
// record store.
type Source func(ctx context.Context) ([]*record.Team, error)

// Cache holds the author mapping with coalesced rebuilds.
//
// Description:
//
//	The mapping is swapped atomically: readers always see a complete
//	mapping, never a partially built one, and never block on a rebuild
//	in progress (they wait only when there is no mapping at all).
//	Concurrent rebuild requests collapse into a single Source call via
//	singleflight.
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	source Source
	logger *slog.Logger

	current atomic.Pointer[Mapping]
	flight  singleflight.Group

	hits     atomic.Int64
	rebuilds atomic.Int64
}

// NewCache creates a mapping cache over the given roster source.
func NewCache(source Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{source: source, logger: logger}
}

// Mapping returns the current author mapping, building it on first use.
//
// Outputs:
//
//	Mapping - The cached or freshly built mapping.
//	error - Non-nil when the roster source fails; no stale mapping is
//	substituted.
func (c *Cache) Mapping(ctx context.Context) (Mapping, error) {
	if m := c.current.Load(); m != nil {
		c.hits.Add(1)
		return *m, nil
	}
	return c.rebuild(ctx)
}

// Invalidate drops the cached mapping; the next Mapping call rebuilds.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// rebuild fetches rosters and swaps in a fresh mapping. Concurrent
// callers share one Source call.
func (c *Cache) rebuild(ctx context.Context) (Mapping, error) {
	result, err, _ := c.flight.Do("mapping", func() (interface{}, error) {
		rosters, err := c.source(ctx)
		if err != nil {
			return nil, fmt.Errorf("load team rosters: %w", err)
		}
		mapping := BuildMapping(rosters, c.logger)
		c.current.Store(&mapping)
		c.rebuilds.Add(1)
		mappingRebuilds.Inc()
		mappingSize.Set(float64(len(mapping)))
		c.logger.Debug("team mapping rebuilt",
			slog.Int("teams", len(rosters)),
			slog.Int("authors", len(mapping)))
		return mapping, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Mapping), nil
}

// Augment annotates a batch with teams, rebuilding the roster once if
// coverage is poor.
//
// Description:
//
//	Runs Augment against the cached mapping. When the unmapped fraction
//	crosses the coverage threshold, the cache is rebuilt exactly once
//	and the batch re-annotated against the fresh mapping. Whatever gap
//	remains after that is returned as-is, so one call can never loop on
//	a genuinely incomplete roster.
//
// Outputs:
//
//	*Attribution - Team assignments with coverage diagnostics; Rebuilt
//	reports whether the second pass happened.
//	error - Non-nil on a roster source failure or a bad author field.
func (c *Cache) Augment(ctx context.Context, records []record.Record, authorField, defaultTeam string) (*Attribution, error) {
	mapping, err := c.Mapping(ctx)
	if err != nil {
		return nil, err
	}

	att, err := Augment(records, mapping, authorField, defaultTeam)
	if err != nil {
		return nil, err
	}
	observeCoverage(att.Coverage)
	if !att.Coverage.GapExceeded() {
		return att, nil
	}

	c.logger.Warn("coverage gap detected, rebuilding team mapping",
		slog.Int("distinct_authors", att.Coverage.DistinctAuthors),
		slog.Int("unmapped_authors", att.Coverage.UnmappedAuthors),
		slog.Any("sample", att.Coverage.UnmappedSample))
	coverageRebuilds.Inc()

	c.Invalidate()
	fresh, err := c.rebuild(ctx)
	if err != nil {
		return nil, err
	}

	att, err = Augment(records, fresh, authorField, defaultTeam)
	if err != nil {
		return nil, err
	}
	att.Rebuilt = true
	observeCoverage(att.Coverage)
	return att, nil
}

// Stats reports cache activity counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Rebuilds int64 `json:"rebuilds"`
	Authors  int   `json:"authors"`
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Rebuilds: c.rebuilds.Load(),
	}
	if m := c.current.Load(); m != nil {
		s.Authors = len(*m)
	}
	return s
}
