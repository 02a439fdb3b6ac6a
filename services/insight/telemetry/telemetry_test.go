// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "devpulse" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "devpulse")
	}
	if cfg.TraceExporter != "otlp" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "otlp")
	}
	if cfg.MetricExporter != "prometheus" {
		t.Errorf("MetricExporter = %q, want %q", cfg.MetricExporter, "prometheus")
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DEVPULSE_ENV", "staging")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	cfg := DefaultConfig()
	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "staging")
	}
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q, want %q", cfg.TraceExporter, "stdout")
	}
}

func TestInit_NilContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"

	if _, err := Init(nil, cfg); !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want ErrNilContext", err)
	}
}

// TestInit_ExporterSelection walks the exporter matrix. The otlp path
// over a live endpoint is covered separately; "jaeger" still appears
// here because grpc.NewClient dials lazily, so Init and an empty-queue
// shutdown complete without a collector.
func TestInit_ExporterSelection(t *testing.T) {
	tests := []struct {
		name    string
		traces  string
		metrics string
		wantErr bool
	}{
		{"everything disabled", "none", "none", false},
		{"stdout traces", "stdout", "none", false},
		{"stdout metrics", "none", "stdout", false},
		{"prometheus metrics", "none", "prometheus", false},
		{"jaeger alias", "jaeger", "none", false},
		{"unknown trace exporter", "zipkin", "none", true},
		{"unknown metric exporter", "none", "statsd", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TraceExporter = tc.traces
			cfg.MetricExporter = tc.metrics

			shutdown, err := Init(context.Background(), cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected Init to fail")
				}
				if !errors.Is(err, ErrUnknownExporter) {
					t.Errorf("error = %v, want ErrUnknownExporter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if shutdown == nil {
				t.Fatal("shutdown function is nil")
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}

func TestInit_SetsPropagator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	fields := otel.GetTextMapPropagator().Fields()
	if !slices.Contains(fields, "traceparent") {
		t.Errorf("propagator fields %v do not carry the traceparent header", fields)
	}
}

func TestMetricsHandler_ServesScrapes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	handler := MetricsHandler()
	if handler == nil {
		t.Fatal("MetricsHandler() returned nil after prometheus init")
	}

	// Record through a fresh instrument so the scrape has content.
	counter, err := otel.Meter("telemetry_test").Int64Counter("telemetry_test_ticks_total")
	if err != nil {
		t.Fatalf("creating counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scrape status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading scrape body: %v", err)
	}
	if !strings.Contains(string(body), "# TYPE") {
		t.Errorf("scrape output is not Prometheus exposition format")
	}
}

func TestMetricsHandler_NilWithoutPrometheus(t *testing.T) {
	prometheusHandlerMu.Lock()
	saved := prometheusHandler
	prometheusHandler = nil
	prometheusHandlerMu.Unlock()
	defer func() {
		prometheusHandlerMu.Lock()
		prometheusHandler = saved
		prometheusHandlerMu.Unlock()
	}()

	if MetricsHandler() != nil {
		t.Error("MetricsHandler() should be nil until the prometheus exporter runs")
	}
}

func TestGetEnvOr(t *testing.T) {
	if got := getEnvOr("DEVPULSE_TEST_UNSET_VARIABLE", "fallback"); got != "fallback" {
		t.Errorf("getEnvOr() = %q, want %q", got, "fallback")
	}

	t.Setenv("DEVPULSE_TEST_SET_VARIABLE", "from-env")
	if got := getEnvOr("DEVPULSE_TEST_SET_VARIABLE", "fallback"); got != "from-env" {
		t.Errorf("getEnvOr() = %q, want %q", got, "from-env")
	}
}
