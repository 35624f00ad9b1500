package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"streampulse/internal/domain/metric"
)

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: exitUsage},
		{name: "unknown command", args: []string{"explode"}, want: exitUsage},
		{name: "stray argument", args: []string{"collect", "now"}, want: exitUsage},
		{name: "bad date", args: []string{"aggregate", "-date", "10/03/2024"}, want: exitUsage},
		{name: "mixed flags", args: []string{"aggregate", "-date", "2024-03-10", "-from", "2024-03-01"}, want: exitUsage},
		{name: "inverted range", args: []string{"aggregate", "-from", "2024-03-10", "-to", "2024-03-01"}, want: exitUsage},
		{name: "unknown flag", args: []string{"aggregate", "-days", "3"}, want: exitUsage},
		{name: "help", args: []string{"help"}, want: exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := run(tt.args, &stderr); got != tt.want {
				t.Fatalf("expected exit %d, got %d (%s)", tt.want, got, stderr.String())
			}
			if stderr.Len() == 0 {
				t.Fatal("expected a message on stderr")
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	now := time.Date(2024, 3, 10, 0, 30, 0, 0, berlin)

	r, err := dateRange("", "", "", now, berlin)
	if err != nil {
		t.Fatalf("default range: %v", err)
	}
	if want := time.Date(2024, 3, 9, 0, 0, 0, 0, berlin); !r.From.Equal(want) || !r.To.Equal(want) {
		t.Fatalf("expected yesterday in the local zone, got %s..%s", r.From, r.To)
	}

	r, err = dateRange("2024-02-29", "", "", now, berlin)
	if err != nil {
		t.Fatalf("single day: %v", err)
	}
	if got := r.Days(berlin); len(got) != 1 || got[0].Day() != 29 {
		t.Fatalf("expected one day on the 29th, got %v", got)
	}

	r, err = dateRange("", "2024-03-01", "2024-03-07", now, berlin)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if got := len(r.Days(berlin)); got != 7 {
		t.Fatalf("expected 7 days, got %d", got)
	}

	if _, err := dateRange("", "2024-03-01", "", now, berlin); !errors.Is(err, metric.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for a half-open range, got %v", err)
	}
}

func TestParseAggregateFlagsKeepsTitle(t *testing.T) {
	var stderr bytes.Buffer
	parsed, err := parseAggregateFlags([]string{"-date", "2024-03-10", "-title", "Dark"}, &stderr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.title != "Dark" || parsed.date != "2024-03-10" {
		t.Fatalf("unexpected flags: %+v", parsed)
	}
	if !strings.Contains(usage, "aggregate-week") {
		t.Fatal("usage must list every command")
	}
}
