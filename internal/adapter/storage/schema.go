// internal/adapter/storage/schema.go

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS titles (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS reactions (
		id BIGSERIAL PRIMARY KEY,
		title_id BIGINT NOT NULL REFERENCES titles(id),
		platform TEXT NOT NULL CHECK (platform IN ('twitter', 'reddit')),
		native_id TEXT NOT NULL,
		text TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL DEFAULT '',
		engagement INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		collected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (platform, native_id)
	);
	CREATE INDEX IF NOT EXISTS idx_reactions_window ON reactions(title_id, platform, created_at);

	CREATE TABLE IF NOT EXISTS sentiment_scores (
		id BIGSERIAL PRIMARY KEY,
		reaction_id BIGINT NOT NULL UNIQUE REFERENCES reactions(id),
		polarity DOUBLE PRECISION NOT NULL CHECK (polarity BETWEEN -1 AND 1),
		class TEXT NOT NULL CHECK (class IN ('positive', 'neutral', 'negative')),
		confidence DOUBLE PRECISION NOT NULL CHECK (confidence BETWEEN 0 AND 1),
		model TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS survey_responses (
		id BIGSERIAL PRIMARY KEY,
		title_id BIGINT NOT NULL REFERENCES titles(id),
		respondent_id TEXT NOT NULL UNIQUE,
		satisfaction SMALLINT NOT NULL CHECK (satisfaction BETWEEN 1 AND 5),
		would_recommend BOOLEAN NOT NULL,
		completion_rate DOUBLE PRECISION NOT NULL CHECK (completion_rate BETWEEN 0 AND 1),
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_survey_window ON survey_responses(title_id, created_at);

	CREATE TABLE IF NOT EXISTS aggregated_metrics (
		title_id BIGINT NOT NULL REFERENCES titles(id),
		platform TEXT NOT NULL CHECK (platform IN ('twitter', 'reddit', 'survey')),
		day DATE NOT NULL,
		positive_count INTEGER NOT NULL DEFAULT 0,
		neutral_count INTEGER NOT NULL DEFAULT 0,
		negative_count INTEGER NOT NULL DEFAULT 0,
		total_count INTEGER NOT NULL DEFAULT 0,
		avg_sentiment DOUBLE PRECISION,
		avg_satisfaction DOUBLE PRECISION,
		avg_completion_rate DOUBLE PRECISION,
		recommendation_rate DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (title_id, platform, day)
	);
`

// Migrate creates the tables used by all stores
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// Connect opens a pool and verifies the connection
func Connect(ctx context.Context, connString string, maxConns, minConns int32, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// withTimeout bounds a single database call
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
