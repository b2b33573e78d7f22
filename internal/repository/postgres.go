package repository

import (
	"context"
	"errors"
	"fmt"

	"crag-clusters/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the vote store table.
const Schema = `
	CREATE TABLE IF NOT EXISTS route_votes (
		url TEXT PRIMARY KEY,
		votes INTEGER NOT NULL CHECK (votes >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

// Repository implements the vote store for PostgreSQL
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// VotesByURLs returns the stored vote count of every known URL in urls
func (r *Repository) VotesByURLs(ctx context.Context, urls []string) (map[string]int, error) {
	sql := `
		SELECT url, votes
		FROM route_votes
		WHERE url = ANY($1)
	`

	rows, err := r.db.Query(ctx, sql, urls)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute votes query: %w", err)
	}
	defer rows.Close()

	votes := make(map[string]int, len(urls))
	for rows.Next() {
		var (
			url   string
			count int
		)
		if err := rows.Scan(&url, &count); err != nil {
			return nil, fmt.Errorf("repository: failed to scan votes: %w", err)
		}
		votes[url] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return votes, nil
}

// FindVotes returns the stored vote count for url, or nil when the store has none
func (r *Repository) FindVotes(ctx context.Context, url string) (*models.RouteVote, error) {
	sql := `
		SELECT url, votes
		FROM route_votes
		WHERE url = $1
	`

	var vote models.RouteVote
	err := r.db.QueryRow(ctx, sql, url).Scan(&vote.URL, &vote.Votes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: failed to execute votes query: %w", err)
	}

	return &vote, nil
}

// UpsertVotes stores the given counts, replacing any earlier count for the same URL
func (r *Repository) UpsertVotes(ctx context.Context, votes []models.RouteVote) error {
	sql := `
		INSERT INTO route_votes (url, votes)
		VALUES ($1, $2)
		ON CONFLICT (url) DO UPDATE SET votes = EXCLUDED.votes, updated_at = now()
	`

	batch := &pgx.Batch{}
	for _, v := range votes {
		batch.Queue(sql, v.URL, v.Votes)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("repository: failed to upsert votes: %w", err)
	}
	return nil
}

// CountVotes returns the number of stored URLs
func (r *Repository) CountVotes(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM route_votes").Scan(&count); err != nil {
		return 0, fmt.Errorf("repository: failed to count votes: %w", err)
	}
	return count, nil
}

// EnsureSchema creates the vote store table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: failed to create schema: %w", err)
	}
	return nil
}

// ImportVotes bulk loads counts through a staging table and merges them into route_votes.
// Later rows win when a URL appears more than once.
func (r *Repository) ImportVotes(ctx context.Context, votes []models.RouteVote) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE route_votes_staging (
			seq BIGINT NOT NULL,
			url TEXT NOT NULL,
			votes INTEGER NOT NULL
		) ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to create staging table: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"route_votes_staging"},
		[]string{"seq", "url", "votes"},
		pgx.CopyFromSlice(len(votes), func(i int) ([]any, error) {
			return []any{int64(i), votes[i].URL, votes[i].Votes}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to copy votes: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO route_votes (url, votes)
		SELECT DISTINCT ON (url) url, votes FROM route_votes_staging ORDER BY url, seq DESC
		ON CONFLICT (url) DO UPDATE SET votes = EXCLUDED.votes, updated_at = now()
	`)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to merge votes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository: failed to commit import: %w", err)
	}
	return tag.RowsAffected(), nil
}
