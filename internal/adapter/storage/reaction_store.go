// internal/adapter/storage/reaction_store.go

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streampulse/internal/domain/reaction"
)

// ReactionStore implements storage for social items, survey responses and their scores
type ReactionStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewReactionStore creates a new reaction store
func NewReactionStore(db *pgxpool.Pool, timeout time.Duration) *ReactionStore {
	return &ReactionStore{
		db:      db,
		timeout: timeout,
	}
}

// InsertReactions stores social items, skipping native IDs already seen
func (s *ReactionStore) InsertReactions(ctx context.Context, titleID int64, platform reaction.Platform, items []reaction.RawItem) (int, error) {
	if !platform.IsSocial() {
		return 0, fmt.Errorf("platform %s does not carry social items", platform)
	}

	query := `
		INSERT INTO reactions (
			title_id, platform, native_id, text, author, channel, engagement, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (platform, native_id) DO NOTHING
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	stored := 0
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			tag, err := tx.Exec(
				ctx,
				query,
				titleID,
				string(platform),
				item.NativeID,
				item.Text,
				item.Author,
				item.Channel,
				item.Engagement,
				item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("error inserting %s item %s: %w", platform, item.NativeID, err)
			}
			stored += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return stored, nil
}

// InsertSurveyResponses stores survey responses, skipping respondent IDs already seen
func (s *ReactionStore) InsertSurveyResponses(ctx context.Context, titleID int64, items []reaction.RawItem) (int, error) {
	query := `
		INSERT INTO survey_responses (
			title_id, respondent_id, satisfaction, would_recommend, completion_rate, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (respondent_id) DO NOTHING
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	stored := 0
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			if item.Survey == nil {
				return fmt.Errorf("survey item %s has no survey fields", item.NativeID)
			}
			if err := item.Survey.Validate(); err != nil {
				return fmt.Errorf("invalid survey item %s: %w", item.NativeID, err)
			}

			tag, err := tx.Exec(
				ctx,
				query,
				titleID,
				item.NativeID,
				item.Survey.Satisfaction,
				item.Survey.WouldRecommend,
				item.Survey.CompletionRate,
				item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("error inserting survey item %s: %w", item.NativeID, err)
			}
			stored += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return stored, nil
}

// ListUnscored returns social items without a sentiment score
func (s *ReactionStore) ListUnscored(ctx context.Context, platform reaction.Platform, limit int) ([]reaction.PendingItem, error) {
	query := `
		SELECT r.id, r.platform, r.text
		FROM reactions r
		LEFT JOIN sentiment_scores s ON s.reaction_id = r.id
		WHERE r.platform = $1 AND s.id IS NULL
		ORDER BY r.id
		LIMIT $2
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, string(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var items []reaction.PendingItem
	for rows.Next() {
		var item reaction.PendingItem
		var platformStr string
		if err := rows.Scan(&item.ID, &platformStr, &item.Text); err != nil {
			return nil, fmt.Errorf("error scanning pending item: %w", err)
		}
		item.Platform = reaction.Platform(platformStr)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending items: %w", err)
	}

	return items, nil
}

// SaveScores stores sentiment scores; an item keeps its first score
func (s *ReactionStore) SaveScores(ctx context.Context, scores []reaction.Score) error {
	query := `
		INSERT INTO sentiment_scores (reaction_id, polarity, class, confidence, model)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reaction_id) DO NOTHING
	`

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, sc := range scores {
			_, err := tx.Exec(
				ctx,
				query,
				sc.ReactionID,
				sc.Sentiment.Polarity,
				string(sc.Sentiment.Class),
				sc.Sentiment.Confidence,
				sc.Sentiment.Model,
			)
			if err != nil {
				return fmt.Errorf("error saving score for reaction %d: %w", sc.ReactionID, err)
			}
		}
		return nil
	})
}

// FindEvents returns the scored events of one platform within [start, end)
func (s *ReactionStore) FindEvents(ctx context.Context, titleID int64, platform reaction.Platform, start, end time.Time) ([]reaction.ClassifiedEvent, error) {
	if platform == reaction.PlatformSurvey {
		query := `
			SELECT id, title_id, respondent_id, satisfaction, would_recommend, completion_rate, created_at
			FROM survey_responses
			WHERE title_id = $1 AND created_at >= $2 AND created_at < $3
			ORDER BY created_at, id
		`
		return s.querySurvey(ctx, query, titleID, start, end)
	}

	query := `
		SELECT
			r.id, r.title_id, r.platform, r.native_id, r.text, r.author, r.channel,
			r.engagement, r.created_at,
			s.polarity, s.class, s.confidence, s.model
		FROM reactions r
		JOIN sentiment_scores s ON s.reaction_id = r.id
		WHERE r.title_id = $1 AND r.platform = $2
		AND r.created_at >= $3 AND r.created_at < $4
		ORDER BY r.created_at, r.id
	`
	return s.querySocial(ctx, query, titleID, string(platform), start, end)
}

// ListEvents returns the most recent events of one platform, scored or not
func (s *ReactionStore) ListEvents(ctx context.Context, titleID int64, platform reaction.Platform, limit int) ([]reaction.ClassifiedEvent, error) {
	if platform == reaction.PlatformSurvey {
		query := `
			SELECT id, title_id, respondent_id, satisfaction, would_recommend, completion_rate, created_at
			FROM survey_responses
			WHERE title_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`
		return s.querySurvey(ctx, query, titleID, limit)
	}

	query := `
		SELECT
			r.id, r.title_id, r.platform, r.native_id, r.text, r.author, r.channel,
			r.engagement, r.created_at,
			s.polarity, s.class, s.confidence, s.model
		FROM reactions r
		LEFT JOIN sentiment_scores s ON s.reaction_id = r.id
		WHERE r.title_id = $1 AND r.platform = $2
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $3
	`
	return s.querySocial(ctx, query, titleID, string(platform), limit)
}

func (s *ReactionStore) querySocial(ctx context.Context, query string, args ...interface{}) ([]reaction.ClassifiedEvent, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var events []reaction.ClassifiedEvent
	for rows.Next() {
		var e reaction.ClassifiedEvent
		var platformStr string
		var polarity, confidence *float64
		var class, model *string

		err := rows.Scan(
			&e.ID,
			&e.TitleID,
			&platformStr,
			&e.NativeID,
			&e.Text,
			&e.Author,
			&e.Channel,
			&e.Engagement,
			&e.Timestamp,
			&polarity,
			&class,
			&confidence,
			&model,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}

		e.Platform = reaction.Platform(platformStr)
		if polarity != nil && class != nil {
			c, err := reaction.ParseClass(*class)
			if err != nil {
				return nil, fmt.Errorf("error parsing event %d: %w", e.ID, err)
			}
			e.Sentiment = &reaction.Sentiment{Polarity: *polarity, Class: c}
			if confidence != nil {
				e.Sentiment.Confidence = *confidence
			}
			if model != nil {
				e.Sentiment.Model = *model
			}
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func (s *ReactionStore) querySurvey(ctx context.Context, query string, args ...interface{}) ([]reaction.ClassifiedEvent, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var events []reaction.ClassifiedEvent
	for rows.Next() {
		e := reaction.ClassifiedEvent{Platform: reaction.PlatformSurvey}
		var sv reaction.Survey
		var satisfaction int16

		err := rows.Scan(
			&e.ID,
			&e.TitleID,
			&e.NativeID,
			&satisfaction,
			&sv.WouldRecommend,
			&sv.CompletionRate,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning survey response: %w", err)
		}

		sv.Satisfaction = int(satisfaction)
		e.Survey = &sv
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating survey responses: %w", err)
	}

	return events, nil
}
