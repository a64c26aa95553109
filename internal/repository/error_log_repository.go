package repository

import (
	"context"
	"fmt"

	"gigwatch/internal/database"
	"gigwatch/internal/domain/run"

	"github.com/google/uuid"
)

// PostgresErrorLogRepository is append-only; entries are never mutated
// or deleted by the pipeline. Retention is somebody else's cron job.
type PostgresErrorLogRepository struct {
	db database.DB
}

func NewPostgresErrorLogRepository(db database.DB) *PostgresErrorLogRepository {
	return &PostgresErrorLogRepository{db: db}
}

func (r *PostgresErrorLogRepository) Append(ctx context.Context, e run.ErrorLogEntry) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil repository")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO scrape_errors (id, run_id, source_id, stage, record_key, payload, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.RunID, e.SourceID, string(e.Stage),
		nullableText(e.RecordKey), e.Payload, e.Message, e.CreatedAt,
	)
	return err
}

func (r *PostgresErrorLogRepository) ListByRun(ctx context.Context, runID uuid.UUID, limit int) ([]run.ErrorLogEntry, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil repository")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, run_id, source_id, stage, COALESCE(record_key, ''), payload, message, created_at
		 FROM scrape_errors
		 WHERE run_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]run.ErrorLogEntry, 0)
	for rows.Next() {
		var e run.ErrorLogEntry
		var stage string
		if err := rows.Scan(&e.ID, &e.RunID, &e.SourceID, &stage, &e.RecordKey, &e.Payload, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Stage = run.Stage(stage)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
