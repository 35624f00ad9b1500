// internal/service/aggregation/platforms.go

package aggregation

import (
	"context"
	"fmt"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

// DefaultPlatforms returns one variant per supported platform in aggregation order
func DefaultPlatforms() []metric.PlatformAggregator {
	return []metric.PlatformAggregator{
		NewSocialAggregator(reaction.PlatformTwitter),
		NewSocialAggregator(reaction.PlatformReddit),
		NewSurveyAggregator(),
	}
}

// SocialAggregator folds scored social items into class counts and a mean polarity
type SocialAggregator struct {
	platform reaction.Platform
}

// NewSocialAggregator creates the variant for one social platform
func NewSocialAggregator(platform reaction.Platform) *SocialAggregator {
	return &SocialAggregator{platform: platform}
}

// Platform returns the platform this variant handles
func (s *SocialAggregator) Platform() reaction.Platform {
	return s.platform
}

// Aggregate returns nil when no scored item exists in the window
func (s *SocialAggregator) Aggregate(ctx context.Context, events reaction.EventStore, titleID int64, window metric.Window) (*metric.Row, error) {
	items, err := events.FindEvents(ctx, titleID, s.platform, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %s events for title %d: %w", metric.ErrSourceUnavailable, s.platform, titleID, err)
	}

	row := &metric.Row{
		TitleID:  titleID,
		Platform: s.platform,
		Day:      window.Start,
	}

	// Items are summed per class in a fixed order so repeated runs yield identical floats
	var positiveSum, neutralSum, negativeSum float64
	for _, e := range items {
		if e.Sentiment == nil {
			continue
		}
		switch e.Sentiment.Class {
		case reaction.ClassPositive:
			row.PositiveCount++
			positiveSum += e.Sentiment.Polarity
		case reaction.ClassNeutral:
			row.NeutralCount++
			neutralSum += e.Sentiment.Polarity
		case reaction.ClassNegative:
			row.NegativeCount++
			negativeSum += e.Sentiment.Polarity
		default:
			return nil, fmt.Errorf("%w: event %d has unknown sentiment class %q", metric.ErrSourceUnavailable, e.ID, e.Sentiment.Class)
		}
	}

	row.TotalCount = row.PositiveCount + row.NeutralCount + row.NegativeCount
	if row.TotalCount == 0 {
		return nil, nil
	}

	polaritySum := positiveSum + neutralSum + negativeSum
	avg := polaritySum / float64(row.TotalCount)
	row.AvgSentiment = &avg

	return row, nil
}

// SurveyAggregator computes unweighted means over survey responses
type SurveyAggregator struct{}

// NewSurveyAggregator creates the survey variant
func NewSurveyAggregator() *SurveyAggregator {
	return &SurveyAggregator{}
}

// Platform returns the survey platform
func (s *SurveyAggregator) Platform() reaction.Platform {
	return reaction.PlatformSurvey
}

// Aggregate returns nil when no response exists in the window
func (s *SurveyAggregator) Aggregate(ctx context.Context, events reaction.EventStore, titleID int64, window metric.Window) (*metric.Row, error) {
	items, err := events.FindEvents(ctx, titleID, reaction.PlatformSurvey, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("%w: survey responses for title %d: %w", metric.ErrSourceUnavailable, titleID, err)
	}

	var count, recommended int
	var satisfactionSum, completionSum float64
	for _, e := range items {
		if e.Survey == nil {
			continue
		}
		count++
		satisfactionSum += float64(e.Survey.Satisfaction)
		completionSum += e.Survey.CompletionRate
		if e.Survey.WouldRecommend {
			recommended++
		}
	}

	if count == 0 {
		return nil, nil
	}

	n := float64(count)
	avgSatisfaction := satisfactionSum / n
	avgCompletion := completionSum / n
	recommendationRate := float64(recommended) / n

	return &metric.Row{
		TitleID:            titleID,
		Platform:           reaction.PlatformSurvey,
		Day:                window.Start,
		TotalCount:         count,
		AvgSatisfaction:    &avgSatisfaction,
		AvgCompletionRate:  &avgCompletion,
		RecommendationRate: &recommendationRate,
	}, nil
}
