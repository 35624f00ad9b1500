// internal/service/pipeline/pipeline.go

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
	"streampulse/internal/logging"
	"streampulse/internal/service/ingestion"
)

// Collector gathers raw reactions for the configured catalog
type Collector interface {
	EnsureCatalog(ctx context.Context) ([]reaction.Title, error)
	CollectAll(ctx context.Context) (ingestion.Report, error)
}

// Scorer classifies stored reactions that have no sentiment yet
type Scorer interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Scheduler recomputes aggregate rows over a date range
type Scheduler interface {
	metric.Scheduler
	RunWeek(ctx context.Context, titles []reaction.Title) (metric.Report, error)
}

// Result is the outcome of one full pipeline pass
type Result struct {
	Collected  ingestion.Report `json:"collected"`
	Scored     int              `json:"scored"`
	Aggregated metric.Report    `json:"aggregated"`
}

// OK reports whether every source and every aggregation unit succeeded
func (r Result) OK() bool {
	return len(r.Collected.Failed()) == 0 && r.Aggregated.OK()
}

// Pipeline runs collection, scoring and aggregation in order
type Pipeline struct {
	catalog   reaction.Catalog
	collector Collector
	scorer    Scorer
	scheduler Scheduler
	log       zerolog.Logger
}

// New creates a new pipeline
func New(catalog reaction.Catalog, collector Collector, scorer Scorer, scheduler Scheduler) *Pipeline {
	return &Pipeline{
		catalog:   catalog,
		collector: collector,
		scorer:    scorer,
		scheduler: scheduler,
		log:       logging.With().Str("component", "pipeline").Logger(),
	}
}

// Setup registers the configured titles in the catalog
func (p *Pipeline) Setup(ctx context.Context) ([]reaction.Title, error) {
	titles, err := p.collector.EnsureCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("error registering titles: %w", err)
	}

	p.log.Info().Int("titles", len(titles)).Msg("Catalog ready")
	return titles, nil
}

// Collect fetches reactions from every source
func (p *Pipeline) Collect(ctx context.Context) (ingestion.Report, error) {
	report, err := p.collector.CollectAll(ctx)
	if err != nil {
		return report, fmt.Errorf("error collecting reactions: %w", err)
	}
	return report, nil
}

// Score classifies every pending reaction
func (p *Pipeline) Score(ctx context.Context) (int, error) {
	n, err := p.scorer.ProcessPending(ctx)
	if err != nil {
		return n, fmt.Errorf("error scoring reactions: %w", err)
	}
	return n, nil
}

// Titles returns the titles to aggregate: the whole catalog, or the single title named
func (p *Pipeline) Titles(ctx context.Context, name string) ([]reaction.Title, error) {
	if name != "" {
		title, err := p.catalog.GetTitleByName(ctx, name)
		if err != nil {
			return nil, err
		}
		return []reaction.Title{*title}, nil
	}

	titles, err := p.catalog.ListTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing titles: %w", err)
	}
	return titles, nil
}

// Aggregate recomputes rows for the range, restricted to one title when name is set
func (p *Pipeline) Aggregate(ctx context.Context, r metric.DateRange, name string) (metric.Report, error) {
	titles, err := p.Titles(ctx, name)
	if err != nil {
		return metric.Report{}, err
	}
	return p.scheduler.Run(ctx, r, titles)
}

// AggregateWeek recomputes rows for the trailing week of the whole catalog
func (p *Pipeline) AggregateWeek(ctx context.Context) (metric.Report, error) {
	titles, err := p.Titles(ctx, "")
	if err != nil {
		return metric.Report{}, err
	}
	return p.scheduler.RunWeek(ctx, titles)
}

// RunOnce runs setup, collection, scoring and the weekly aggregation.
// Source failures are reported in the result; a stage error stops the pass.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	var result Result
	start := time.Now()

	if _, err := p.Setup(ctx); err != nil {
		return result, err
	}

	collected, err := p.Collect(ctx)
	result.Collected = collected
	if err != nil {
		return result, err
	}

	scored, err := p.Score(ctx)
	result.Scored = scored
	if err != nil {
		return result, err
	}

	report, err := p.AggregateWeek(ctx)
	result.Aggregated = report
	if err != nil {
		return result, err
	}

	event := p.log.Info()
	if !result.OK() {
		event = p.log.Warn()
	}
	event.
		Int("stored", collected.Stored()).
		Int("source_failures", len(collected.Failed())).
		Int("scored", scored).
		Int("units_succeeded", report.Succeeded).
		Int("units_failed", len(report.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Pipeline pass completed")

	return result, nil
}

// IsCancelled reports whether err comes from a cancelled or expired context
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
