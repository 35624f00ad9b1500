// internal/adapter/storage/metric_store.go

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

// MetricStore implements storage for aggregate rows
type MetricStore struct {
	db      *pgxpool.Pool
	loc     *time.Location
	timeout time.Duration
}

// NewMetricStore creates a new metric store; loc anchors the calendar days read back
func NewMetricStore(db *pgxpool.Pool, loc *time.Location, timeout time.Duration) *MetricStore {
	if loc == nil {
		loc = time.UTC
	}
	return &MetricStore{
		db:      db,
		loc:     loc,
		timeout: timeout,
	}
}

// UpsertRows writes every row in one transaction, replacing all computed fields by key
func (s *MetricStore) UpsertRows(ctx context.Context, rows []metric.Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO aggregated_metrics (
			title_id, platform, day,
			positive_count, neutral_count, negative_count, total_count,
			avg_sentiment, avg_satisfaction, avg_completion_rate, recommendation_rate
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11
		)
		ON CONFLICT (title_id, platform, day) DO UPDATE
		SET
			positive_count = EXCLUDED.positive_count,
			neutral_count = EXCLUDED.neutral_count,
			negative_count = EXCLUDED.negative_count,
			total_count = EXCLUDED.total_count,
			avg_sentiment = EXCLUDED.avg_sentiment,
			avg_satisfaction = EXCLUDED.avg_satisfaction,
			avg_completion_rate = EXCLUDED.avg_completion_rate,
			recommendation_rate = EXCLUDED.recommendation_rate
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, r := range rows {
			// DATE parameters take the calendar fields of the value
			day := time.Date(r.Day.Year(), r.Day.Month(), r.Day.Day(), 0, 0, 0, 0, time.UTC)

			_, err := tx.Exec(
				ctx,
				query,
				r.TitleID,
				string(r.Platform),
				day,
				r.PositiveCount,
				r.NeutralCount,
				r.NegativeCount,
				r.TotalCount,
				r.AvgSentiment,
				r.AvgSatisfaction,
				r.AvgCompletionRate,
				r.RecommendationRate,
			)
			if err != nil {
				return fmt.Errorf("error upserting %s row for title %d on %s: %w",
					r.Platform, r.TitleID, day.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// FindRows returns the rows of a title within the inclusive day range
func (s *MetricStore) FindRows(ctx context.Context, titleID int64, from, to time.Time) ([]metric.Row, error) {
	query := `
		SELECT
			title_id, platform, day,
			positive_count, neutral_count, negative_count, total_count,
			avg_sentiment, avg_satisfaction, avg_completion_rate, recommendation_rate
		FROM aggregated_metrics
		WHERE title_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day, platform
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	rows, err := s.db.Query(ctx, query, titleID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var result []metric.Row
	for rows.Next() {
		var r metric.Row
		var platformStr string
		var day time.Time

		err := rows.Scan(
			&r.TitleID,
			&platformStr,
			&day,
			&r.PositiveCount,
			&r.NeutralCount,
			&r.NegativeCount,
			&r.TotalCount,
			&r.AvgSentiment,
			&r.AvgSatisfaction,
			&r.AvgCompletionRate,
			&r.RecommendationRate,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning metric row: %w", err)
		}

		r.Platform = reaction.Platform(platformStr)
		r.Day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric rows: %w", err)
	}

	return result, nil
}
