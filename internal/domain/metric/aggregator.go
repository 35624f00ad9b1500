// internal/domain/metric/aggregator.go

package metric

import (
	"context"
	"time"

	"streampulse/internal/domain/reaction"
)

// RowStore defines storage for aggregate rows
type RowStore interface {
	// UpsertRows inserts or overwrites every row by key, all or nothing
	UpsertRows(ctx context.Context, rows []Row) error

	// FindRows returns the rows of a title within the inclusive day range
	FindRows(ctx context.Context, titleID int64, from, to time.Time) ([]Row, error)
}

// Aggregator defines the per (title, day) recomputation
type Aggregator interface {
	// Aggregate recomputes every platform row of title for day and returns the rows written
	Aggregate(ctx context.Context, title reaction.Title, day time.Time) ([]Row, error)
}

// PlatformAggregator computes the row of a single platform
type PlatformAggregator interface {
	// Platform returns the platform this variant handles
	Platform() reaction.Platform

	// Aggregate returns nil when the platform has no events in the window
	Aggregate(ctx context.Context, events reaction.EventStore, titleID int64, window Window) (*Row, error)
}

// Scheduler defines batch aggregation over a date range
type Scheduler interface {
	// Run aggregates every title for every day of the range
	Run(ctx context.Context, r DateRange, titles []reaction.Title) (Report, error)
}

// SummaryReader defines the read-side presentation API
type SummaryReader interface {
	// Summarize returns per-platform summaries over the last dayCount days
	Summarize(ctx context.Context, titleID int64, dayCount int) (Summary, error)
}
