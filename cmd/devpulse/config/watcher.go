// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow collapses editor write bursts (truncate, write,
// rename) into a single reload.
const DefaultDebounceWindow = 250 * time.Millisecond

// ReloadFunc receives the freshly parsed config after a change on disk.
type ReloadFunc func(cfg *DevpulseConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// Watcher monitors the directory containing the config file (editors
// replace files by rename, which would orphan a watch on the file
// itself) and re-parses after a debounce window. A change that fails to
// parse or validate is logged and dropped; the previous config stays in
// effect.
//
// # Thread Safety
//
// Start must be called once, from its own goroutine when the caller
// needs to keep working. Stop is safe to call multiple times.
//
// # Example
//
//	w, err := config.NewWatcher(path, func(cfg *config.DevpulseConfig) {
//	    limiter.SetLimit(rate.Limit(cfg.Server.GetRateLimit()))
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	go w.Start(ctx)
//	defer w.Stop()
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the config file at path.
//
// The parent directory must exist. onReload runs on the watcher
// goroutine; keep it short or hand off to a channel.
func NewWatcher(path string, onReload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if onReload == nil {
		return nil, fmt.Errorf("onReload callback is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounceWindow,
		onReload: onReload,
		logger:   logger,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start blocks, processing filesystem events until the context is
// cancelled or Stop is called. Run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Debug("Config watcher started", "path", w.path)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// Each event pushes the reload out by another window, so a
			// burst produces one reload after the last write.
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("Config watcher stopped", "reason", "context cancelled")
			return

		case <-w.done:
			w.logger.Debug("Config watcher stopped", "reason", "stop requested")
			return
		}
	}
}

// Stop halts the watcher and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// relevant reports whether the event touches the config file with an op
// that changes its contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload re-parses the file and delivers it to the callback. Parse or
// validation failures keep the previous config in effect.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("Config changed but could not be read", "path", w.path, "error", err)
		return
	}

	cfg, err := parse(data)
	if err != nil {
		w.logger.Warn("Config changed but failed validation, keeping previous", "path", w.path, "error", err)
		return
	}

	w.logger.Info("Config reloaded", "path", w.path)
	w.onReload(cfg)
}
