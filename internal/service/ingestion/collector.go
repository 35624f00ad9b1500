// internal/service/ingestion/collector.go

package ingestion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"streampulse/internal/domain/reaction"
	"streampulse/internal/logging"
	"streampulse/internal/metrics"
	"streampulse/internal/retry"
)

// Source fetches raw items about one title from one platform
type Source interface {
	// Platform returns the platform the items belong to
	Platform() reaction.Platform

	// Fetch returns the items currently available for title
	Fetch(ctx context.Context, title string) ([]reaction.RawItem, error)
}

// CollectorConfig contains configuration for the collector
type CollectorConfig struct {
	Titles []string
	Retry  retry.Config
}

// Result is the outcome of one (title, source) collection
type Result struct {
	Title    string            `json:"title"`
	Platform reaction.Platform `json:"platform"`
	Fetched  int               `json:"fetched"`
	Stored   int               `json:"stored"`
	Err      error             `json:"-"`
}

// Report summarizes one collection pass
type Report struct {
	Results []Result `json:"results"`
}

// Failed returns the results that ended in an error
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Stored returns the number of new items stored
func (r Report) Stored() int {
	n := 0
	for _, res := range r.Results {
		n += res.Stored
	}
	return n
}

// Collector runs every source for every configured title and stores the results
type Collector struct {
	catalog reaction.Catalog
	store   reaction.Store
	sources []Source
	config  CollectorConfig
	log     zerolog.Logger
}

// NewCollector creates a new collector
func NewCollector(catalog reaction.Catalog, store reaction.Store, sources []Source, config CollectorConfig) *Collector {
	c := &Collector{
		catalog: catalog,
		store:   store,
		sources: sources,
		config:  config,
		log:     logging.With().Str("component", "collector").Logger(),
	}
	if c.config.Retry.Logger == nil {
		c.config.Retry.Logger = &c.log
	}
	return c
}

// EnsureCatalog registers every configured title and returns them in catalog order
func (c *Collector) EnsureCatalog(ctx context.Context) ([]reaction.Title, error) {
	titles := make([]reaction.Title, 0, len(c.config.Titles))
	for _, name := range c.config.Titles {
		t, err := c.catalog.EnsureTitle(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("error registering title %q: %w", name, err)
		}
		titles = append(titles, *t)
	}
	return titles, nil
}

// CollectAll collects every configured title.
// A failing title or source is recorded in the report and does not stop the others.
func (c *Collector) CollectAll(ctx context.Context) (Report, error) {
	var report Report
	for _, name := range c.config.Titles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, c.CollectTitle(ctx, name)...)
	}

	c.log.Info().
		Int("titles", len(c.config.Titles)).
		Int("stored", report.Stored()).
		Int("failed", len(report.Failed())).
		Msg("Collection completed")

	return report, nil
}

// CollectTitle runs every source for one title
func (c *Collector) CollectTitle(ctx context.Context, name string) []Result {
	title, err := c.catalog.EnsureTitle(ctx, name)
	if err != nil {
		c.log.Error().Err(err).Str("title", name).Msg("Error registering title")
		results := make([]Result, 0, len(c.sources))
		for _, src := range c.sources {
			results = append(results, Result{Title: name, Platform: src.Platform(), Err: err})
		}
		return results
	}

	results := make([]Result, 0, len(c.sources))
	for _, src := range c.sources {
		res := c.collect(ctx, *title, src)
		results = append(results, res)
	}
	return results
}

func (c *Collector) collect(ctx context.Context, title reaction.Title, src Source) Result {
	platform := src.Platform()
	res := Result{Title: title.Name, Platform: platform}
	log := c.log.With().Str("title", title.Name).Str("platform", string(platform)).Logger()

	items, err := retry.DoWithResult(ctx, c.config.Retry, func() ([]reaction.RawItem, error) {
		return src.Fetch(ctx, title.Name)
	})
	if err != nil {
		metrics.SourceErrors.WithLabelValues(string(platform)).Inc()
		log.Error().Err(err).Msg("Error fetching items")
		res.Err = fmt.Errorf("error fetching %s items for %q: %w", platform, title.Name, err)
		return res
	}
	res.Fetched = len(items)

	if len(items) == 0 {
		log.Debug().Msg("No items fetched")
		return res
	}

	var stored int
	if platform.IsSocial() {
		stored, err = c.store.InsertReactions(ctx, title.ID, platform, items)
	} else {
		stored, err = c.store.InsertSurveyResponses(ctx, title.ID, items)
	}
	if err != nil {
		log.Error().Err(err).Msg("Error storing items")
		res.Err = fmt.Errorf("error storing %s items for %q: %w", platform, title.Name, err)
		return res
	}
	res.Stored = stored

	metrics.ItemsIngested.WithLabelValues(string(platform)).Add(float64(stored))
	log.Info().Int("fetched", res.Fetched).Int("stored", stored).Msg("Collected items")

	return res
}
