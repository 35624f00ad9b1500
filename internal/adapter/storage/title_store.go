// internal/adapter/storage/title_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

// TitleStore implements the title catalog
type TitleStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewTitleStore creates a new title store
func NewTitleStore(db *pgxpool.Pool, timeout time.Duration) *TitleStore {
	return &TitleStore{
		db:      db,
		timeout: timeout,
	}
}

// EnsureTitle returns the title with the given name, creating it on first reference
func (s *TitleStore) EnsureTitle(ctx context.Context, name string) (*reaction.Title, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("title name is required")
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	// The no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO titles (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at
	`

	var t reaction.Title
	if err := s.db.QueryRow(ctx, query, name).Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("error ensuring title: %w", err)
	}

	return &t, nil
}

// GetTitle retrieves a title by ID
func (s *TitleStore) GetTitle(ctx context.Context, id int64) (*reaction.Title, error) {
	return s.getTitle(ctx, `SELECT id, name, created_at FROM titles WHERE id = $1`, id)
}

// GetTitleByName retrieves a title by name
func (s *TitleStore) GetTitleByName(ctx context.Context, name string) (*reaction.Title, error) {
	return s.getTitle(ctx, `SELECT id, name, created_at FROM titles WHERE name = $1`, strings.TrimSpace(name))
}

func (s *TitleStore) getTitle(ctx context.Context, query string, arg interface{}) (*reaction.Title, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var t reaction.Title
	err := s.db.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: title %v", metric.ErrUnknownEntity, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying title: %w", err)
	}

	return &t, nil
}

// ListTitles returns every title in catalog order
func (s *TitleStore) ListTitles(ctx context.Context) ([]reaction.Title, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT id, name, created_at FROM titles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var titles []reaction.Title
	for rows.Next() {
		var t reaction.Title
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning title: %w", err)
		}
		titles = append(titles, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating titles: %w", err)
	}

	return titles, nil
}
