// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger implements the record store on an embedded BadgerDB.
//
// Records are stored as JSON values under per-kind key prefixes, which
// keeps fetch-by-kind a single prefix scan and full deletion a prefix
// sweep. The database runs in-process: no external store to provision,
// which is the same trade the rest of the system makes for local-first
// operation.
//
// BadgerDB itself is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds the knobs for the embedded database.
type Config struct {
	// Path is the directory for database files. Required unless
	// InMemory is set.
	Path string

	// InMemory skips disk persistence entirely. Tests use this.
	InMemory bool

	// SyncWrites forces an fsync per commit. On for real data, off for
	// tests.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables it; in-memory databases never run it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage fraction that triggers a value-log
	// rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns the production configuration: durable writes and
// background GC every five minutes.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns the test configuration: no disk, no sync, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter bridges slog to badger's Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (l *slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB is the embedded database with its GC lifecycle attached.
type DB struct {
	*badger.DB
	cfg    Config
	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens the database described by cfg and starts background GC when
// configured.
//
// Description:
//
//	Creates the directory if needed, opens badger with the configured
//	durability, and wires badger's logging into slog. Call Close when
//	done; it stops GC before closing the database.
//
// Outputs:
//
//	*DB - The opened database. Safe for concurrent use.
//	error - Non-nil if the path is missing or badger refuses to open.
func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	db := &DB{DB: bdb, cfg: cfg}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		db.gcStop = make(chan struct{})
		db.gcDone = make(chan struct{})
		go db.runGC()
	}
	return db, nil
}

// OpenInMemory opens a throwaway in-memory database for tests.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

func (d *DB) runGC() {
	defer close(d.gcDone)

	ticker := time.NewTicker(d.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			// Nil from RunValueLogGC means a rewrite happened;
			// ErrNoRewrite means there was nothing worth collecting.
			err := d.DB.RunValueLogGC(d.cfg.GCDiscardRatio)
			switch {
			case err == nil:
				if d.cfg.Logger != nil {
					d.cfg.Logger.Debug("badger value log GC completed")
				}
			case !errors.Is(err, badger.ErrNoRewrite):
				if d.cfg.Logger != nil {
					d.cfg.Logger.Warn("badger value log GC error",
						slog.String("error", err.Error()))
				}
			}
		}
	}
}

// Close stops the GC loop and closes the database. Safe to call once.
func (d *DB) Close() error {
	if d.gcStop != nil {
		close(d.gcStop)
		<-d.gcDone
	}
	return d.DB.Close()
}

// Path returns the database directory, or empty for in-memory databases.
func (d *DB) Path() string {
	return d.cfg.Path
}

// WithTxn runs fn inside a read-write transaction, committing on nil and
// discarding on error. The context is checked before the transaction
// starts; badger transactions themselves are not cancellable mid-flight.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction not started: %w", err)
	}

	txn := d.DB.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction not started: %w", err)
	}

	txn := d.DB.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// Backup streams a full backup of the database to w and returns the
// number of bytes written. Used by the GCS upload path.
func (d *DB) Backup(ctx context.Context, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("backup not started: %w", err)
	}
	counted := &countingWriter{w: w}
	if _, err := d.DB.Backup(counted, 0); err != nil {
		return counted.n, fmt.Errorf("backup badger database: %w", err)
	}
	return counted.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
