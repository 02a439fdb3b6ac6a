// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/store"
)

// ctxCheckInterval is how many records a scan processes between context
// checks.
const ctxCheckInterval = 256

// deleteChunkSize bounds how many keys a single delete transaction
// carries.
const deleteChunkSize = 4096

// RecordStore implements store.Store over an embedded badger database.
//
// Description:
//
//	Each record is one key/value pair: "r/<kind>/<natural key>" mapped
//	to the record's JSON. Upserts therefore replace by identity for
//	free, and fetch/delete by kind are prefix operations.
//
// Thread Safety: Safe for concurrent use; badger transactions provide
// snapshot isolation.
type RecordStore struct {
	db     *DB
	logger *slog.Logger
}

var _ store.Store = (*RecordStore)(nil)

// NewRecordStore wraps an open database as a record store.
func NewRecordStore(db *DB, logger *slog.Logger) *RecordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStore{db: db, logger: logger}
}

func recordKey(kind record.Kind, suffix string) []byte {
	return []byte("r/" + string(kind) + "/" + suffix)
}

func kindPrefix(kind record.Kind) []byte {
	return []byte("r/" + string(kind) + "/")
}

func mapClosed(err error) error {
	if err != nil && errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return err
}

// Fetch returns every record of kind matching the filter. A nil filter
// matches everything; an empty result is not an error.
func (s *RecordStore) Fetch(ctx context.Context, kind record.Kind, filter record.Filter) ([]record.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("fetch: unknown record kind %q", kind)
	}
	defer observeOp("fetch", kind, time.Now())

	var out []record.Record
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return s.scan(ctx, txn, kind, func(rec record.Record) error {
			if filter != nil {
				ok, err := filter.Matches(rec)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, mapClosed(fmt.Errorf("fetch %s: %w", kind, err))
	}
	return out, nil
}

// scan iterates the kind's prefix, decoding each value and handing the
// record to visit. The context is checked every ctxCheckInterval records
// so a large scan notices cancellation.
func (s *RecordStore) scan(ctx context.Context, txn *badger.Txn, kind record.Kind, visit func(record.Record) error) error {
	prefix := kindPrefix(kind)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	var seen int
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		seen++
		if seen%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan cancelled after %d records: %w", seen, err)
			}
		}

		item := it.Item()
		err := item.Value(func(val []byte) error {
			rec, err := record.New(kind)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(val, rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			return visit(rec)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertBatch writes the batch in a single transaction, replacing any
// record that shares a natural key.
//
// Description:
//
//	Records are normalized (derived durations recomputed, implied state
//	applied) and serialized before the transaction opens, so a marshal
//	failure costs nothing. The whole batch commits or none of it does;
//	only if badger rejects the transaction as too large is the batch
//	bisected, each half then committing atomically on its own.
//
// Outputs:
//
//	error - Non-nil on kind mismatch, empty natural key, or a storage
//	failure. An empty batch is a no-op.
func (s *RecordStore) UpsertBatch(ctx context.Context, kind record.Kind, records []record.Record) error {
	if !kind.Valid() {
		return fmt.Errorf("upsert: unknown record kind %q", kind)
	}
	if len(records) == 0 {
		return nil
	}
	defer observeOp("upsert", kind, time.Now())

	entries := make([]entry, len(records))
	for i, rec := range records {
		if rec.RecordKind() != kind {
			return fmt.Errorf("upsert %s: record %d has kind %q", kind, i, rec.RecordKind())
		}
		if n, ok := rec.(record.Normalizer); ok {
			n.Normalize()
		}
		suffix := rec.Key()
		if suffix == "" {
			return fmt.Errorf("upsert %s: record %d has an empty natural key", kind, i)
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("upsert %s: encode record %d: %w", kind, i, err)
		}
		entries[i] = entry{key: recordKey(kind, suffix), val: val}
	}

	if err := s.writeEntries(ctx, entries); err != nil {
		return mapClosed(fmt.Errorf("upsert %s: %w", kind, err))
	}
	recordsWritten.WithLabelValues(string(kind)).Add(float64(len(entries)))
	return nil
}

type entry struct {
	key []byte
	val []byte
}

// writeEntries commits the entries in one transaction, bisecting only
// when badger reports the transaction too big.
func (s *RecordStore) writeEntries(ctx context.Context, entries []entry) error {
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(e.key, e.val); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrTxnTooBig) || len(entries) <= 1 {
		return err
	}

	mid := len(entries) / 2
	s.logger.Debug("splitting oversized batch",
		slog.Int("records", len(entries)))
	if err := s.writeEntries(ctx, entries[:mid]); err != nil {
		return err
	}
	return s.writeEntries(ctx, entries[mid:])
}

// DeleteAll removes every record of the kind and returns how many were
// deleted. Deleting an absent kind returns zero, not an error.
func (s *RecordStore) DeleteAll(ctx context.Context, kind record.Kind) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("delete: unknown record kind %q", kind)
	}
	defer observeOp("delete_all", kind, time.Now())

	// Collect keys first; deleting while iterating the same transaction
	// invalidates the iterator.
	var keys [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := kindPrefix(kind)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
			if len(keys)%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, mapClosed(fmt.Errorf("delete %s: collect keys: %w", kind, err))
	}

	for start := 0; start < len(keys); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(keys))
		err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
			for _, k := range keys[start:end] {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return start, mapClosed(fmt.Errorf("delete %s: %w", kind, err))
		}
	}
	return len(keys), nil
}

// DistinctValues returns the sorted distinct non-empty values of a
// string field across all records of the kind. List-valued fields
// contribute each element.
func (s *RecordStore) DistinctValues(ctx context.Context, kind record.Kind, field string) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("distinct: unknown record kind %q", kind)
	}
	defer observeOp("distinct", kind, time.Now())

	seen := make(map[string]struct{})
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return s.scan(ctx, txn, kind, func(rec record.Record) error {
			value, ok := rec.Field(field)
			if !ok {
				return fmt.Errorf("record kind %q has no field %q", kind, field)
			}
			switch v := value.(type) {
			case string:
				if v != "" {
					seen[v] = struct{}{}
				}
			case []string:
				for _, elem := range v {
					if elem != "" {
						seen[elem] = struct{}{}
					}
				}
			default:
				return fmt.Errorf("field %q of kind %q is not a string field", field, kind)
			}
			return nil
		})
	})
	if err != nil {
		return nil, mapClosed(fmt.Errorf("distinct %s.%s: %w", kind, field, err))
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the underlying database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}
