package repository

import (
	"context"
	"fmt"
	"time"

	"gigwatch/internal/database"
	"gigwatch/internal/domain/run"

	"github.com/google/uuid"
)

type PostgresRunRepository struct {
	db database.DB
}

func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Create(ctx context.Context, sr run.ScraperRun) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil repository")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO scrape_runs (id, source_id, started_at, status)
		 VALUES ($1, $2, $3, $4)`,
		sr.ID, sr.SourceID, sr.StartedAt, string(sr.Status),
	)
	return err
}

func (r *PostgresRunRepository) Close(ctx context.Context, id uuid.UUID, status run.Status, counts run.Counts, errMsg string, finishedAt time.Time) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil repository")
	}
	if id == uuid.Nil {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE scrape_runs
		 SET finished_at = $2, status = $3,
		     scraped = $4, created = $5, updated = $6, unchanged = $7, skipped = $8, failed = $9,
		     error = $10
		 WHERE id = $1`,
		id, finishedAt, string(status),
		counts.Scraped, counts.Created, counts.Updated, counts.Unchanged, counts.Skipped, counts.Failed,
		nullableText(errMsg),
	)
	return err
}

func (r *PostgresRunRepository) ListRecent(ctx context.Context, sourceID string, limit int) ([]run.ScraperRun, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil repository")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	q := `SELECT id, source_id, started_at, finished_at, status,
	             scraped, created, updated, unchanged, skipped, failed,
	             COALESCE(error, '')
	      FROM scrape_runs`
	args := []any{}
	if sourceID != "" {
		q += ` WHERE source_id = $1 ORDER BY started_at DESC LIMIT $2`
		args = append(args, sourceID, limit)
	} else {
		q += ` ORDER BY started_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]run.ScraperRun, 0)
	for rows.Next() {
		var sr run.ScraperRun
		var status string
		if err := rows.Scan(
			&sr.ID, &sr.SourceID, &sr.StartedAt, &sr.FinishedAt, &status,
			&sr.Counts.Scraped, &sr.Counts.Created, &sr.Counts.Updated,
			&sr.Counts.Unchanged, &sr.Counts.Skipped, &sr.Counts.Failed,
			&sr.Error,
		); err != nil {
			return nil, err
		}
		sr.Status = run.Status(status)
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
