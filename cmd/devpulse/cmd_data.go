// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devpulsehq/devpulse/cmd/devpulse/config"
	"github.com/devpulsehq/devpulse/pkg/ux"
	"github.com/devpulsehq/devpulse/services/insight/export"
	"github.com/devpulsehq/devpulse/services/insight/record"
	"github.com/devpulsehq/devpulse/services/insight/report"
	"github.com/devpulsehq/devpulse/services/insight/secrets"
	"github.com/devpulsehq/devpulse/services/insight/store"
	badgerstore "github.com/devpulsehq/devpulse/services/insight/store/badger"
)

// envInfluxToken carries the InfluxDB API token into data export. It
// is never written to the config file.
const envInfluxToken = "DEVPULSE_INFLUX_TOKEN"

// resolveStorePath returns the configured store directory, defaulting
// to <config dir>/data.
func resolveStorePath(cfg *config.DevpulseConfig) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	dir, err := config.Dir()
	if err != nil {
		log.Fatalf("Could not resolve the store directory: %v", err)
	}
	return filepath.Join(dir, config.DefaultStoreSubdir)
}

// openStore opens the configured badger store for this command run.
func openStore(cfg *config.DevpulseConfig) (*badgerstore.DB, *badgerstore.RecordStore) {
	storeCfg := badgerstore.DefaultConfig(resolveStorePath(cfg))
	storeCfg.SyncWrites = cfg.Store.SyncWrites
	storeCfg.GCInterval = cfg.Store.GCInterval()
	db, err := badgerstore.Open(storeCfg)
	if err != nil {
		log.Fatalf("Failed to open the metrics store: %v", err)
	}
	return db, badgerstore.NewRecordStore(db, slog.Default())
}

func closeStore(db *badgerstore.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("Store close failed", slog.String("error", err.Error()))
	}
}

func runDataReset(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		ux.Error("the --force flag is required to proceed with this destructive operation")
		ux.Muted("Example: devpulse data reset --force")
		return
	}

	ux.Warning("This will permanently delete every record in the local metrics store.")
	fmt.Print("Are you sure you want to continue? (yes/no): ")
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	if strings.TrimSpace(input) != "yes" {
		ux.Muted("Aborted.")
		return
	}

	db, st := openStore(config.Global)
	defer closeStore(db)

	ctx := context.Background()
	total := 0
	for _, kind := range record.Kinds() {
		n, err := st.DeleteAll(ctx, kind)
		if err != nil {
			log.Fatalf("Failed to clear %s records: %v", kind, err)
		}
		fmt.Printf("Cleared %d %s records\n", n, kind)
		total += n
	}

	ux.Success(fmt.Sprintf("Removed %d records", total))
}

func runDataExport(cmd *cobra.Command, args []string) {
	cfg := config.Global

	tf, err := report.ParseTimeframe(dataTimeframe)
	if err != nil {
		log.Fatalf("Invalid timeframe: %v", err)
	}

	token := os.Getenv(envInfluxToken)
	if token == "" {
		log.Fatalf("%s is not set; export needs an InfluxDB API token", envInfluxToken)
	}

	// The token lives in the vault for the rest of the run and is
	// released only to build the client.
	vault, err := secrets.New()
	if err != nil {
		log.Fatalf("Failed to initialize the secret vault: %v", err)
	}
	defer vault.Destroy()
	if !vault.Secure() {
		ux.WarningBox("Insecure memory", "The token is held in plain memory and may reach swap on this system.")
	}
	if err := vault.PutString("influx-token", token); err != nil {
		log.Fatalf("Failed to store the InfluxDB token: %v", err)
	}

	ctx := context.Background()
	influxCfg := export.InfluxConfig{
		URL:    cfg.Influx.GetURL(),
		Org:    cfg.Influx.GetOrg(),
		Bucket: cfg.Influx.GetBucket(),
	}

	var writer *export.InfluxWriter
	err = vault.Use("influx-token", func(value []byte) error {
		w, err := export.NewInfluxWriter(ctx, influxCfg, string(value), slog.Default())
		if err != nil {
			return err
		}
		writer = w
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to connect to InfluxDB at %s: %v", influxCfg.URL, err)
	}
	defer writer.Close()

	db, st := openStore(cfg)
	defer closeStore(db)

	now := time.Now().UTC()
	snap := export.Snapshot{Timeframe: tf}

	err = ux.WithSpinner("Building report pages", func() error {
		prs, err := store.PullRequests(ctx, st, nil)
		if err != nil {
			return err
		}
		issues, err := store.Issues(ctx, st, nil)
		if err != nil {
			return err
		}
		commits, err := store.Commits(ctx, st, nil)
		if err != nil {
			return err
		}
		runs, err := store.WorkflowRuns(ctx, st, nil)
		if err != nil {
			return err
		}

		snap.PRs = report.BuildPRPage(prs, tf, now)
		snap.Issues = report.BuildIssuePage(issues, tf, now)
		snap.Commits = report.BuildCommitPage(commits, tf, now)
		snap.Runners = report.BuildRunnerPage(runs, tf, now)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to build report pages: %v", err)
	}

	var written int
	err = ux.WithSpinner(fmt.Sprintf("Writing %s snapshot to InfluxDB", tf), func() error {
		n, err := writer.WriteSnapshot(ctx, snap)
		written = n
		return err
	})
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Println(ux.KeyValue("points", written))
	fmt.Println(ux.KeyValue("bucket", influxCfg.Bucket))
}

func runDataBackup(cmd *cobra.Command, args []string) {
	cfg := config.Global

	if cfg.GCS.Bucket == "" {
		log.Fatalf("No GCS bucket configured; set gcs.bucket in the config file")
	}

	ctx := context.Background()
	client, err := export.NewBackupClient(ctx, export.GCSConfig{
		Bucket:  cfg.GCS.Bucket,
		Prefix:  cfg.GCS.GetPrefix(),
		KeyFile: cfg.GCS.KeyFile,
	}, slog.Default())
	if err != nil {
		log.Fatalf("Failed to create the GCS client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("GCS client close failed", slog.String("error", err.Error()))
		}
	}()

	db, _ := openStore(cfg)
	defer closeStore(db)

	var object string
	var uploaded int64
	err = ux.WithSpinner("Uploading store backup", func() error {
		obj, n, err := client.UploadBackup(ctx, db)
		object = obj
		uploaded = n
		return err
	})
	if err != nil {
		log.Fatalf("Backup failed: %v", err)
	}

	fmt.Println(ux.KeyValue("object", object))
	fmt.Println(ux.KeyValue("bytes", uploaded))
}
