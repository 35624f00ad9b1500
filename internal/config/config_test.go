package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Aggregation.Timezone != "UTC" {
		t.Errorf("expected UTC timezone, got %s", cfg.Aggregation.Timezone)
	}
	if cfg.Aggregation.MaxConcurrency != 1 {
		t.Errorf("expected sequential aggregation by default, got %d", cfg.Aggregation.MaxConcurrency)
	}
	if cfg.Pipeline.Interval != 6*time.Hour {
		t.Errorf("expected a 6h pipeline interval, got %s", cfg.Pipeline.Interval)
	}
	if len(cfg.Ingestion.Titles) != len(DefaultTitles) {
		t.Errorf("expected %d default titles, got %d", len(DefaultTitles), len(cfg.Ingestion.Titles))
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AGGREGATION_TIMEZONE", "Europe/Berlin")
	t.Setenv("AGGREGATION_MAX_CONCURRENCY", "4")
	t.Setenv("AGGREGATION_UNIT_TIMEOUT", "5s")
	t.Setenv("INGEST_TITLES", "Dark, Ozark ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Aggregation.MaxConcurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Aggregation.MaxConcurrency)
	}
	if cfg.Aggregation.UnitTimeout != 5*time.Second {
		t.Errorf("expected 5s unit timeout, got %s", cfg.Aggregation.UnitTimeout)
	}
	if got := strings.Join(cfg.Ingestion.Titles, "|"); got != "Dark|Ozark" {
		t.Errorf("unexpected titles %q", got)
	}

	loc, err := cfg.Aggregation.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %s", loc)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad timezone", "AGGREGATION_TIMEZONE", "Mars/Olympus"},
		{"zero concurrency", "AGGREGATION_MAX_CONCURRENCY", "0"},
		{"zero summary days", "AGGREGATION_SUMMARY_DAYS", "0"},
		{"negative pipeline interval", "PIPELINE_INTERVAL", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestConnString(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5433, Database: "d", SSLMode: "disable"}
	if got, want := db.ConnString(), "postgres://u:p@h:5433/d?sslmode=disable"; got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}
