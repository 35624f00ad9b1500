// internal/service/aggregation/summary.go

package aggregation

import (
	"context"
	"fmt"
	"time"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

// SummaryService reads aggregate rows for presentation
type SummaryService struct {
	catalog reaction.Catalog
	rows    metric.RowStore
	loc     *time.Location
	now     func() time.Time
}

// NewSummaryService creates a new summary service
func NewSummaryService(catalog reaction.Catalog, rows metric.RowStore, loc *time.Location) *SummaryService {
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryService{
		catalog: catalog,
		rows:    rows,
		loc:     loc,
		now:     time.Now,
	}
}

// Window returns the inclusive day range [today-dayCount, today]
func (s *SummaryService) Window(dayCount int) (metric.DateRange, error) {
	if dayCount <= 0 {
		return metric.DateRange{}, fmt.Errorf("%w: day count must be positive, got %d", metric.ErrInvalidRange, dayCount)
	}
	today := metric.Day(s.now(), s.loc)
	return metric.DateRange{From: today.AddDate(0, 0, -dayCount), To: today}, nil
}

// Rows returns the raw aggregate rows of a title over the last dayCount days
func (s *SummaryService) Rows(ctx context.Context, titleID int64, dayCount int) ([]metric.Row, error) {
	r, err := s.Window(dayCount)
	if err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetTitle(ctx, titleID); err != nil {
		return nil, err
	}

	rows, err := s.rows.FindRows(ctx, titleID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("error reading rows for title %d: %w", titleID, err)
	}

	return rows, nil
}

// Summarize returns one summary per platform over the last dayCount days.
// Averages are unweighted means of the daily averages, not pooled over events.
func (s *SummaryService) Summarize(ctx context.Context, titleID int64, dayCount int) (metric.Summary, error) {
	r, err := s.Window(dayCount)
	if err != nil {
		return metric.Summary{}, err
	}

	rows, err := s.Rows(ctx, titleID, dayCount)
	if err != nil {
		return metric.Summary{}, err
	}

	summary := metric.Summary{
		TitleID: titleID,
		From:    r.From,
		To:      r.To,
	}
	for _, p := range reaction.Platforms {
		summary.Platforms = append(summary.Platforms, summarizePlatform(p, rows))
	}

	return summary, nil
}

func summarizePlatform(p reaction.Platform, rows []metric.Row) metric.PlatformSummary {
	ps := metric.PlatformSummary{Platform: p}
	if p.IsSocial() {
		ps.Breakdown = &metric.Breakdown{}
	}

	var sentimentSum, satisfactionSum, recommendationSum float64
	for _, row := range rows {
		if row.Platform != p {
			continue
		}

		ps.Days++
		ps.TotalCount += row.TotalCount

		if p.IsSocial() {
			// An absent average counts as zero
			if row.AvgSentiment != nil {
				sentimentSum += *row.AvgSentiment
			}
			ps.Breakdown.Positive += row.PositiveCount
			ps.Breakdown.Neutral += row.NeutralCount
			ps.Breakdown.Negative += row.NegativeCount
			continue
		}

		if row.AvgSatisfaction != nil {
			satisfactionSum += *row.AvgSatisfaction
		}
		if row.RecommendationRate != nil {
			recommendationSum += *row.RecommendationRate
		}
	}

	if ps.Days == 0 {
		return ps
	}

	n := float64(ps.Days)
	if p.IsSocial() {
		ps.AvgSentiment = sentimentSum / n
	} else {
		ps.AvgSatisfaction = satisfactionSum / n
		ps.RecommendationRate = recommendationSum / n
	}

	return ps
}
