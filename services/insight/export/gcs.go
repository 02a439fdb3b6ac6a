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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// BackupSource streams a point-in-time snapshot of the store into w,
// returning the byte count. The badger store's DB satisfies it.
type BackupSource interface {
	Backup(ctx context.Context, w io.Writer) (int64, error)
}

// GCSConfig locates the backup bucket and the service account that can
// write to it.
type GCSConfig struct {
	Bucket  string `json:"bucket"`
	Prefix  string `json:"prefix"`
	KeyFile string `json:"key_file"`
}

// BackupClient uploads store backups to one GCS bucket.
type BackupClient struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
	logger        *slog.Logger
}

// NewBackupClient authenticates against GCS with the configured service
// account key.
func NewBackupClient(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*BackupClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.KeyFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", cfg.KeyFile)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(cfg.KeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &BackupClient{
		storageClient: storageClient,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		logger:        logger,
	}, nil
}

// Close releases the storage client.
func (c *BackupClient) Close() error {
	return c.storageClient.Close()
}

// UploadBackup streams a store snapshot straight into a timestamped GCS
// object, without staging it on local disk. Returns the object name and
// the byte count.
func (c *BackupClient) UploadBackup(ctx context.Context, src BackupSource) (string, int64, error) {
	name := backupObjectName(c.prefix, time.Now().UTC())

	// Canceling the writer's context abandons the partial object if the
	// backup stream fails midway.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := c.storageClient.Bucket(c.bucket).Object(name)
	writer := obj.NewWriter(wctx)
	writer.ContentType = "application/octet-stream"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	n, err := src.Backup(ctx, writer)
	if err != nil {
		cancel()
		return "", 0, fmt.Errorf("backup store: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}

	c.logger.Info("Uploaded store backup",
		"object", fmt.Sprintf("gs://%s/%s", c.bucket, name),
		"bytes", n,
	)
	return name, n, nil
}

// backupObjectName builds the object key for a backup taken at now.
func backupObjectName(prefix string, now time.Time) string {
	return path.Join(prefix, fmt.Sprintf("devpulse-%s.backup", now.Format("20060102T150405Z")))
}
