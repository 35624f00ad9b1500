// internal/service/aggregation/scheduler.go

package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
	"streampulse/internal/logging"
	"streampulse/internal/metrics"
)

// SchedulerConfig contains configuration for the batch scheduler
type SchedulerConfig struct {
	MaxConcurrency int
	UnitTimeout    time.Duration
	EventsTopic    string
}

// BatchScheduler drives the daily aggregator across a date range and a title list
type BatchScheduler struct {
	aggregator metric.Aggregator
	eventBus   Publisher
	config     SchedulerConfig
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

// NewBatchScheduler creates a new batch scheduler; eventBus may be nil
func NewBatchScheduler(
	aggregator metric.Aggregator,
	eventBus Publisher,
	loc *time.Location,
	config SchedulerConfig,
) *BatchScheduler {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if config.EventsTopic == "" {
		config.EventsTopic = "aggregate"
	}
	if loc == nil {
		loc = time.UTC
	}

	return &BatchScheduler{
		aggregator: aggregator,
		eventBus:   eventBus,
		config:     config,
		loc:        loc,
		now:        time.Now,
		log:        logging.With().Str("component", "scheduler").Logger(),
	}
}

type unitResult struct {
	started bool
	rows    []metric.Row
	err     error
}

// Run aggregates every title for every day of the range.
// Days run in order; titles of one day run in parallel up to MaxConcurrency.
// A failed unit is recorded in the report and never stops the run.
// When ctx is cancelled no further unit starts and the partial report is returned with ctx.Err().
func (s *BatchScheduler) Run(ctx context.Context, r metric.DateRange, titles []reaction.Title) (metric.Report, error) {
	report := metric.Report{
		RunID:     uuid.New().String(),
		Range:     r,
		Failed:    []metric.UnitFailure{},
		StartedAt: s.now(),
	}

	if err := r.Validate(); err != nil {
		report.FinishedAt = s.now()
		return report, err
	}

	log := s.log.With().Str("run_id", report.RunID).Logger()
	log.Info().
		Str("from", r.From.Format("2006-01-02")).
		Str("to", r.To.Format("2006-01-02")).
		Int("titles", len(titles)).
		Int("concurrency", s.config.MaxConcurrency).
		Msg("Starting aggregation run")

	var runErr error
	for _, day := range r.Days(s.loc) {
		results := s.runDay(ctx, report.RunID, day, titles)

		for i, res := range results {
			if !res.started {
				continue
			}
			if res.err != nil {
				report.Failed = append(report.Failed, metric.UnitFailure{
					TitleID: titles[i].ID,
					Title:   titles[i].Name,
					Day:     day,
					Err:     res.err,
				})
				continue
			}
			report.Succeeded++
			report.RowsWritten += len(res.rows)
		}

		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
	}

	report.FinishedAt = s.now()

	event := RunCompletedEvent{
		RunID:       report.RunID,
		From:        r.From.Format("2006-01-02"),
		To:          r.To.Format("2006-01-02"),
		Succeeded:   report.Succeeded,
		Failed:      len(report.Failed),
		RowsWritten: report.RowsWritten,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Cancelled:   runErr != nil,
	}
	if err := publishJSON(s.eventBus, RunSubject(s.config.EventsTopic), event); err != nil {
		log.Warn().Err(err).Msg("Error publishing run event")
	}

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Int("rows", report.RowsWritten).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Bool("cancelled", runErr != nil).
		Msg("Aggregation run finished")

	return report, runErr
}

// RunWeek aggregates the trailing week, today included
func (s *BatchScheduler) RunWeek(ctx context.Context, titles []reaction.Title) (metric.Report, error) {
	today := metric.Day(s.now(), s.loc)
	return s.Run(ctx, metric.DateRange{From: today.AddDate(0, 0, -7), To: today}, titles)
}

// runDay returns one result per title, indexed like titles
func (s *BatchScheduler) runDay(ctx context.Context, runID string, day time.Time, titles []reaction.Title) []unitResult {
	results := make([]unitResult, len(titles))
	sem := make(chan struct{}, s.config.MaxConcurrency)
	var wg sync.WaitGroup

	for i := range titles {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		results[i].started = true
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].rows, results[i].err = s.runUnit(ctx, runID, titles[i], day)
		}(i)
	}

	wg.Wait()
	return results
}

func (s *BatchScheduler) runUnit(ctx context.Context, runID string, title reaction.Title, day time.Time) (rows []metric.Row, err error) {
	start := time.Now()
	log := s.log.With().
		Str("run_id", runID).
		Int64("title_id", title.ID).
		Str("title", title.Name).
		Str("day", day.Format("2006-01-02")).
		Logger()

	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("panic aggregating unit: %v", p)
		}

		metrics.RecordUnit(err, time.Since(start).Seconds())

		if err != nil {
			log.Error().Err(err).Msg("Aggregation unit failed")
			return
		}
		log.Debug().Int("rows", len(rows)).Msg("Aggregation unit completed")
	}()

	unitCtx := ctx
	if s.config.UnitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, s.config.UnitTimeout)
		defer cancel()
	}

	rows, err = s.aggregator.Aggregate(unitCtx, title, day)
	if err != nil {
		return nil, err
	}

	event := UnitCompletedEvent{
		RunID:   runID,
		TitleID: title.ID,
		Title:   title.Name,
		Day:     day.Format("2006-01-02"),
		Rows:    rows,
	}
	if err := publishJSON(s.eventBus, UnitSubject(s.config.EventsTopic), event); err != nil {
		log.Warn().Err(err).Msg("Error publishing unit event")
	}

	return rows, nil
}
