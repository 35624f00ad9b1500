// internal/domain/reaction/store.go

package reaction

import (
	"context"
	"time"
)

// Catalog defines the set of tracked titles
type Catalog interface {
	// EnsureTitle returns the title with the given name, creating it on first reference
	EnsureTitle(ctx context.Context, name string) (*Title, error)

	// GetTitle returns a title by ID
	GetTitle(ctx context.Context, id int64) (*Title, error)

	// GetTitleByName returns a title by its display name
	GetTitleByName(ctx context.Context, name string) (*Title, error)

	// ListTitles returns every title in catalog order
	ListTitles(ctx context.Context) ([]Title, error)
}

// EventStore defines read access to classified events
type EventStore interface {
	// FindEvents returns the scored events of one platform within [start, end)
	FindEvents(ctx context.Context, titleID int64, platform Platform, start, end time.Time) ([]ClassifiedEvent, error)

	// ListEvents returns the most recent events of one platform for drill-down views
	ListEvents(ctx context.Context, titleID int64, platform Platform, limit int) ([]ClassifiedEvent, error)
}

// Store defines write access used by ingestion and scoring
type Store interface {
	// InsertReactions stores social items, skipping native IDs already seen
	InsertReactions(ctx context.Context, titleID int64, platform Platform, items []RawItem) (int, error)

	// InsertSurveyResponses stores survey responses, skipping respondent IDs already seen
	InsertSurveyResponses(ctx context.Context, titleID int64, items []RawItem) (int, error)

	// ListUnscored returns social items without a sentiment score
	ListUnscored(ctx context.Context, platform Platform, limit int) ([]PendingItem, error)

	// SaveScores stores sentiment scores
	SaveScores(ctx context.Context, scores []Score) error
}
