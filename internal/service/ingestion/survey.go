// internal/service/ingestion/survey.go

package ingestion

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"streampulse/internal/domain/reaction"
)

// Satisfaction scores 1..5 are drawn with these probabilities
var satisfactionWeights = []float64{0.05, 0.15, 0.25, 0.35, 0.20}

// MockSurveyConfig contains configuration for the generated survey source
type MockSurveyConfig struct {
	Responses int
	DaysBack  int
}

// MockSurveySource generates a reproducible set of survey responses per title
type MockSurveySource struct {
	config MockSurveyConfig
	now    func() time.Time
}

// NewMockSurveySource creates a new generated survey source
func NewMockSurveySource(config MockSurveyConfig) *MockSurveySource {
	if config.Responses <= 0 {
		config.Responses = 100
	}
	if config.DaysBack <= 0 {
		config.DaysBack = 30
	}
	return &MockSurveySource{
		config: config,
		now:    time.Now,
	}
}

// Platform returns the survey platform
func (s *MockSurveySource) Platform() reaction.Platform {
	return reaction.PlatformSurvey
}

// Fetch returns the responses of title; the same title always yields the same respondents and answers
func (s *MockSurveySource) Fetch(ctx context.Context, title string) ([]reaction.RawItem, error) {
	rng := rand.New(rand.NewSource(seedFor(title)))
	base := s.now().UTC().AddDate(0, 0, -s.config.DaysBack)
	prefix := strings.ReplaceAll(title, " ", "_")

	items := make([]reaction.RawItem, 0, s.config.Responses)
	for i := 0; i < s.config.Responses; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		satisfaction := drawSatisfaction(rng)
		survey := &reaction.Survey{
			Satisfaction:   satisfaction,
			WouldRecommend: satisfaction >= 4,
			// sqrt of a uniform draw is Beta(2, 1), skewed towards completion
			CompletionRate: math.Sqrt(rng.Float64()),
		}

		items = append(items, reaction.RawItem{
			NativeID:  fmt.Sprintf("resp_%s_%04d", prefix, i),
			CreatedAt: base.AddDate(0, 0, rng.Intn(s.config.DaysBack)),
			Survey:    survey,
		})
	}

	return items, nil
}

func seedFor(title string) int64 {
	h := fnv.New64a()
	h.Write([]byte(title))
	return int64(h.Sum64())
}

func drawSatisfaction(rng *rand.Rand) int {
	u := rng.Float64()
	cumulative := 0.0
	for i, w := range satisfactionWeights {
		cumulative += w
		if u < cumulative {
			return i + 1
		}
	}
	return len(satisfactionWeights)
}
