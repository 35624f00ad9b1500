// internal/service/sentiment/scorer.go

package sentiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"streampulse/internal/domain/reaction"
	"streampulse/internal/logging"
	"streampulse/internal/metrics"
)

// Classifier scores one text
type Classifier interface {
	Analyze(text string) reaction.Sentiment
}

// Scorer assigns a sentiment score to every stored social item that lacks one
type Scorer struct {
	store      reaction.Store
	classifier Classifier
	batchSize  int
	log        zerolog.Logger
}

// NewScorer creates a new scorer
func NewScorer(store reaction.Store, classifier Classifier, batchSize int) *Scorer {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Scorer{
		store:      store,
		classifier: classifier,
		batchSize:  batchSize,
		log:        logging.With().Str("component", "sentiment").Logger(),
	}
}

// ProcessPending scores pending twitter then reddit items and returns how many were scored
func (s *Scorer) ProcessPending(ctx context.Context) (int, error) {
	total := 0
	for _, p := range reaction.Platforms {
		if !p.IsSocial() {
			continue
		}

		n, err := s.processPlatform(ctx, p)
		total += n
		if err != nil {
			return total, err
		}
	}

	s.log.Info().Int("scored", total).Msg("Sentiment scoring completed")
	return total, nil
}

func (s *Scorer) processPlatform(ctx context.Context, platform reaction.Platform) (int, error) {
	scored := 0
	for {
		if err := ctx.Err(); err != nil {
			return scored, err
		}

		pending, err := s.store.ListUnscored(ctx, platform, s.batchSize)
		if err != nil {
			return scored, fmt.Errorf("error listing unscored %s items: %w", platform, err)
		}
		if len(pending) == 0 {
			break
		}

		scores := make([]reaction.Score, 0, len(pending))
		for _, item := range pending {
			scores = append(scores, reaction.Score{
				ReactionID: item.ID,
				Sentiment:  s.classifier.Analyze(item.Text),
			})
		}

		if err := s.store.SaveScores(ctx, scores); err != nil {
			return scored, fmt.Errorf("error saving %s scores: %w", platform, err)
		}

		for _, sc := range scores {
			metrics.ItemsScored.WithLabelValues(string(platform), string(sc.Sentiment.Class)).Inc()
		}
		scored += len(scores)

		s.log.Debug().Str("platform", string(platform)).Int("batch", len(scores)).Msg("Scored batch")

		if len(pending) < s.batchSize {
			break
		}
	}

	return scored, nil
}
