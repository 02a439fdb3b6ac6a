// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the devpulse YAML configuration.
//
// The file lives at ~/.devpulse/devpulse.yaml by default and is created
// with defaults on first run. Every sub-config tolerates missing fields:
// getters fall back to the documented defaults, so a hand-trimmed file
// keeps working.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values applied when the config file omits a field.
const (
	// CurrentConfigVersion is written into new config files.
	CurrentConfigVersion = "1.0.0"

	// DefaultServerAddr is the API listen address.
	DefaultServerAddr = ":8600"

	// DefaultStoreSubdir is the badger directory under the config dir.
	DefaultStoreSubdir = "data"

	// DefaultRateLimitPerSecond matches the server middleware default.
	DefaultRateLimitPerSecond = 30.0

	// DefaultRateBurst matches the server middleware default.
	DefaultRateBurst = 60

	// DefaultInfluxURL points at a local InfluxDB instance.
	DefaultInfluxURL = "http://localhost:8086"

	// DefaultInfluxOrg is the export organization.
	DefaultInfluxOrg = "devpulse"

	// DefaultInfluxBucket receives exported report series.
	DefaultInfluxBucket = "engineering"

	// DefaultGCSPrefix namespaces backup objects in the bucket.
	DefaultGCSPrefix = "devpulse-backups"
)

// configValidate is the validator instance for config types.
// Initialized in init().
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// ConfigMeta records provenance for a config file.
type ConfigMeta struct {
	Version    string `yaml:"version"`
	CreatedAt  int64  `yaml:"created_at"`
	ModifiedAt int64  `yaml:"modified_at"`
	ModifiedBy string `yaml:"modified_by"`
}

// newConfigMeta builds metadata for a freshly created config.
func newConfigMeta() ConfigMeta {
	now := time.Now().UnixMilli()
	return ConfigMeta{
		Version:    CurrentConfigVersion,
		CreatedAt:  now,
		ModifiedAt: now,
		ModifiedBy: "devpulse-cli",
	}
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (m ConfigMeta) CreatedAtTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// ModifiedAtTime returns ModifiedAt as a time.Time.
func (m ConfigMeta) ModifiedAtTime() time.Time {
	return time.UnixMilli(m.ModifiedAt)
}

// StoreConfig locates the badger record store.
type StoreConfig struct {
	// Path is the badger directory. Empty means <config dir>/data.
	Path string `yaml:"path"`

	// SyncWrites forces an fsync per commit. Defaults to true for real
	// data; the loader does not touch it.
	SyncWrites bool `yaml:"sync_writes"`

	// GCIntervalMinutes is how often value-log GC runs. Zero disables it.
	GCIntervalMinutes int `yaml:"gc_interval_minutes" validate:"gte=0"`
}

// GCInterval returns the garbage collection interval as a duration.
func (c StoreConfig) GCInterval() time.Duration {
	return time.Duration(c.GCIntervalMinutes) * time.Minute
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8600".
	Addr string `yaml:"addr"`

	// RateLimitPerSecond is the steady request rate the API accepts.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"gte=0"`

	// RateBurst is the burst capacity above the steady rate.
	RateBurst int `yaml:"rate_burst" validate:"gte=0"`
}

// GetAddr returns the configured listen address or the default.
func (c ServerConfig) GetAddr() string {
	if c.Addr == "" {
		return DefaultServerAddr
	}
	return c.Addr
}

// GetRateLimit returns the steady rate or the default when unset.
func (c ServerConfig) GetRateLimit() float64 {
	if c.RateLimitPerSecond <= 0 {
		return DefaultRateLimitPerSecond
	}
	return c.RateLimitPerSecond
}

// GetRateBurst returns the burst capacity or the default when unset.
func (c ServerConfig) GetRateBurst() int {
	if c.RateBurst <= 0 {
		return DefaultRateBurst
	}
	return c.RateBurst
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	// Environment tags telemetry resources (development, production).
	Environment string `yaml:"environment"`

	// TraceExporter: otlp, stdout, or none.
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// MetricExporter: prometheus, stdout, or none.
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`

	// OTLPEndpoint is the OTLP gRPC receiver for traces.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// InfluxConfig locates the InfluxDB export target. The API token is NOT
// stored here; it comes from DEVPULSE_INFLUX_TOKEN via the secrets vault.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// GetURL returns the configured URL or the local default.
func (c InfluxConfig) GetURL() string {
	if c.URL == "" {
		return DefaultInfluxURL
	}
	return c.URL
}

// GetOrg returns the configured org or the default.
func (c InfluxConfig) GetOrg() string {
	if c.Org == "" {
		return DefaultInfluxOrg
	}
	return c.Org
}

// GetBucket returns the configured bucket or the default.
func (c InfluxConfig) GetBucket() string {
	if c.Bucket == "" {
		return DefaultInfluxBucket
	}
	return c.Bucket
}

// GCSConfig locates the backup bucket and service account key.
type GCSConfig struct {
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	KeyFile string `yaml:"key_file"`
}

// GetPrefix returns the configured object prefix or the default.
func (c GCSConfig) GetPrefix() string {
	if c.Prefix == "" {
		return DefaultGCSPrefix
	}
	return c.Prefix
}

// SeedConfig carries generator defaults for the seed command. Zero
// values fall through to the generator's own defaults.
type SeedConfig struct {
	OrgSize        int `yaml:"org_size" validate:"gte=0"`
	IssuesPerRepo  int `yaml:"issues_per_repo" validate:"gte=0"`
	PRsPerRepo     int `yaml:"prs_per_repo" validate:"gte=0"`
	CommitsPerRepo int `yaml:"commits_per_repo" validate:"gte=0"`
	RunsPerRepo    int `yaml:"runs_per_repo" validate:"gte=0"`
	BatchSize      int `yaml:"batch_size" validate:"gte=0"`
}

// DevpulseConfig is the root of the YAML config file.
type DevpulseConfig struct {
	Meta      ConfigMeta      `yaml:"meta"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Influx    InfluxConfig    `yaml:"influx"`
	GCS       GCSConfig       `yaml:"gcs"`
	Seed      SeedConfig      `yaml:"seed"`
}

// Validate checks field constraints on the whole config tree.
func (c *DevpulseConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() DevpulseConfig {
	return DevpulseConfig{
		Meta: newConfigMeta(),
		Store: StoreConfig{
			SyncWrites:        true,
			GCIntervalMinutes: 5,
		},
		Server: ServerConfig{
			Addr:               DefaultServerAddr,
			RateLimitPerSecond: DefaultRateLimitPerSecond,
			RateBurst:          DefaultRateBurst,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "otlp",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
		Influx: InfluxConfig{
			URL:    DefaultInfluxURL,
			Org:    DefaultInfluxOrg,
			Bucket: DefaultInfluxBucket,
		},
		GCS: GCSConfig{
			Prefix: DefaultGCSPrefix,
		},
		Seed: SeedConfig{},
	}
}
