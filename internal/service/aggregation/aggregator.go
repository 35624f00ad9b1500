// internal/service/aggregation/aggregator.go

package aggregation

import (
	"context"
	"fmt"
	"time"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
	"streampulse/internal/metrics"
)

// DailyAggregator recomputes the rows of one (title, day) unit
type DailyAggregator struct {
	events    reaction.EventStore
	rows      metric.RowStore
	platforms []metric.PlatformAggregator
	loc       *time.Location
}

// NewDailyAggregator creates an aggregator over the default platforms
func NewDailyAggregator(events reaction.EventStore, rows metric.RowStore, loc *time.Location) *DailyAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyAggregator{
		events:    events,
		rows:      rows,
		platforms: DefaultPlatforms(),
		loc:       loc,
	}
}

// Aggregate reads every platform for the day, then writes all resulting rows at once.
// A read failure writes nothing; a platform without events keeps its previous row.
func (a *DailyAggregator) Aggregate(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
	if title.ID <= 0 {
		return nil, fmt.Errorf("%w: title %q has no id", metric.ErrUnknownEntity, title.Name)
	}

	window := metric.DayWindow(day, a.loc)

	var rows []metric.Row
	for _, p := range a.platforms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := p.Aggregate(ctx, a.events, title.ID, window)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}

	if len(rows) == 0 {
		return nil, nil
	}

	if err := a.rows.UpsertRows(ctx, rows); err != nil {
		return nil, fmt.Errorf("%w: title %d on %s: %w", metric.ErrStorageWrite, title.ID, window.Start.Format("2006-01-02"), err)
	}

	for _, r := range rows {
		metrics.RowsUpserted.WithLabelValues(string(r.Platform)).Inc()
	}

	return rows, nil
}
