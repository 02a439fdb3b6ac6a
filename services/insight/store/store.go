// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the persistence contract for collected records.
//
// The metrics pipeline is deliberately ignorant of what sits behind this
// interface; it asks for records of a kind matching a filter and gets
// them back as domain types. The badger subpackage provides the embedded
// implementation used in production and tests.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/devpulsehq/devpulse/services/insight/record"
)

// ErrClosed is returned by operations against a store that has been
// closed. Callers racing shutdown branch on it with errors.Is.
var ErrClosed = errors.New("record store is closed")

// Store is the persistence contract.
//
// Description:
//
//	Fetch returns every record of a kind matching the filter; a nil
//	filter returns all of them and an empty result is valid, never an
//	error. UpsertBatch replaces records by natural identity within a
//	single transaction, so re-inserting the same batch is idempotent.
//	DeleteAll drops a whole kind and reports how many records went.
//	DistinctValues lists distinct non-empty values of a string field;
//	list-valued fields contribute each element.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	Fetch(ctx context.Context, kind record.Kind, filter record.Filter) ([]record.Record, error)
	UpsertBatch(ctx context.Context, kind record.Kind, records []record.Record) error
	DeleteAll(ctx context.Context, kind record.Kind) (int, error)
	DistinctValues(ctx context.Context, kind record.Kind, field string) ([]string, error)
	Close() error
}

// fetchAs fetches a kind and narrows the result to its concrete type.
func fetchAs[T record.Record](ctx context.Context, s Store, kind record.Kind, filter record.Filter) ([]T, error) {
	recs, err := s.Fetch(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		typed, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("store returned %T for kind %q", r, kind)
		}
		out = append(out, typed)
	}
	return out, nil
}

// Teams fetches team records matching the filter.
func Teams(ctx context.Context, s Store, filter record.Filter) ([]*record.Team, error) {
	return fetchAs[*record.Team](ctx, s, record.KindTeam, filter)
}

// Repositories fetches repository records matching the filter.
func Repositories(ctx context.Context, s Store, filter record.Filter) ([]*record.Repository, error) {
	return fetchAs[*record.Repository](ctx, s, record.KindRepository, filter)
}

// PullRequests fetches pull request records matching the filter.
func PullRequests(ctx context.Context, s Store, filter record.Filter) ([]*record.PullRequest, error) {
	return fetchAs[*record.PullRequest](ctx, s, record.KindPullRequest, filter)
}

// Issues fetches issue records matching the filter.
func Issues(ctx context.Context, s Store, filter record.Filter) ([]*record.Issue, error) {
	return fetchAs[*record.Issue](ctx, s, record.KindIssue, filter)
}

// Commits fetches commit records matching the filter.
func Commits(ctx context.Context, s Store, filter record.Filter) ([]*record.Commit, error) {
	return fetchAs[*record.Commit](ctx, s, record.KindCommit, filter)
}

// WorkflowRuns fetches workflow run records matching the filter.
func WorkflowRuns(ctx context.Context, s Store, filter record.Filter) ([]*record.WorkflowRun, error) {
	return fetchAs[*record.WorkflowRun](ctx, s, record.KindWorkflowRun, filter)
}
