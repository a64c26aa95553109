package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gigwatch/internal/database"
	"gigwatch/internal/domain/gig"
	"gigwatch/internal/pipeline"
)

// PostgresGigStore holds the canonical gig documents, keyed by
// identity key. All writes go through upsert-by-key; the row is the
// unit of atomicity.
type PostgresGigStore struct {
	db database.DB
}

func NewPostgresGigStore(db database.DB) *PostgresGigStore {
	return &PostgresGigStore{db: db}
}

func (s *PostgresGigStore) FindByKeys(ctx context.Context, keys []string) (map[string]gig.Gig, error) {
	out := make(map[string]gig.Gig, len(keys))
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil store")
	}
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT identity_key, source_id, sources, title,
		        venue_name, venue_slug, venue_address, venue_locality,
		        start_at, end_at, description, ticket_url, price,
		        content_hash, status, missed_runs,
		        first_seen, last_seen, last_updated
		 FROM gigs
		 WHERE identity_key = ANY($1)`,
		keys,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		out[g.Key] = g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkUpsert applies each op independently; one bad record reports its
// own outcome and leaves the rest of the batch committed.
func (s *PostgresGigStore) BulkUpsert(ctx context.Context, ops []pipeline.UpsertOp) ([]pipeline.OpOutcome, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("nil store")
	}

	outcomes := make([]pipeline.OpOutcome, 0, len(ops))
	for _, op := range ops {
		var err error
		switch op.Action {
		case pipeline.ActionCreate, pipeline.ActionUpdate:
			err = s.upsertGig(ctx, op.Gig)
		case pipeline.ActionUnchanged:
			err = s.bumpSighting(ctx, op.Gig)
		default:
			err = fmt.Errorf("unsupported action: %s", op.Action)
		}
		outcomes = append(outcomes, pipeline.OpOutcome{Key: op.Gig.Key, Action: op.Action, Err: err})
	}
	return outcomes, nil
}

func (s *PostgresGigStore) upsertGig(ctx context.Context, g gig.Gig) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO gigs (
			identity_key, source_id, sources, title,
			venue_name, venue_slug, venue_address, venue_locality,
			start_at, end_at, description, ticket_url, price,
			content_hash, status, missed_runs,
			first_seen, last_seen, last_updated
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (identity_key) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			sources = EXCLUDED.sources,
			title = EXCLUDED.title,
			venue_name = EXCLUDED.venue_name,
			venue_slug = EXCLUDED.venue_slug,
			venue_address = EXCLUDED.venue_address,
			venue_locality = EXCLUDED.venue_locality,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			description = EXCLUDED.description,
			ticket_url = EXCLUDED.ticket_url,
			price = EXCLUDED.price,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			missed_runs = 0,
			first_seen = gigs.first_seen,
			last_seen = EXCLUDED.last_seen,
			last_updated = EXCLUDED.last_updated`,
		g.Key,
		g.SourceID,
		sourcesArray(g.Sources),
		g.Title,
		g.Venue.Name,
		g.Venue.Slug,
		nullableText(g.Venue.Address),
		nullableText(g.Venue.Locality),
		g.StartAt,
		g.EndAt,
		nullableText(g.Description),
		nullableText(g.TicketURL),
		nullableText(g.Price),
		g.ContentHash,
		string(g.Status),
		g.MissedRuns,
		g.FirstSeen,
		g.LastSeen,
		g.LastUpdated,
	)
	if err != nil {
		return err
	}

	// Residency occurrences are replaced wholesale with the parent.
	if _, err := tx.Exec(ctx, `DELETE FROM gig_performances WHERE gig_key = $1`, g.Key); err != nil {
		return err
	}
	for _, p := range g.Performances {
		if _, err := tx.Exec(ctx,
			`INSERT INTO gig_performances (gig_key, start_at) VALUES ($1, $2)`,
			g.Key, p.StartAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresGigStore) bumpSighting(ctx context.Context, g gig.Gig) error {
	_, err := s.db.Exec(ctx,
		`UPDATE gigs
		 SET sources = $2, last_seen = $3, missed_runs = 0
		 WHERE identity_key = $1`,
		g.Key, sourcesArray(g.Sources), g.LastSeen,
	)
	return err
}

// SweepStale ages out gigs that a completed run for their source did
// not see. Gigs are only ever flagged, never deleted: a site removing
// a future-dated event does not make it invalid.
func (s *PostgresGigStore) SweepStale(ctx context.Context, sourceID string, seenBefore time.Time, staleAfter int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil store")
	}
	if staleAfter <= 0 {
		return 0, nil
	}

	_, err := s.db.Exec(ctx,
		`UPDATE gigs
		 SET missed_runs = missed_runs + 1
		 WHERE source_id = $1 AND status = 'active' AND last_seen < $2`,
		sourceID, seenBefore,
	)
	if err != nil {
		return 0, err
	}

	return s.db.Exec(ctx,
		`UPDATE gigs
		 SET status = 'stale'
		 WHERE source_id = $1 AND status = 'active' AND missed_runs >= $2`,
		sourceID, staleAfter,
	)
}

func scanGig(rows database.Rows) (gig.Gig, error) {
	var g gig.Gig
	var sources []string
	var endAt *time.Time
	var address, locality, description, ticketURL, price *string
	var status string

	err := rows.Scan(
		&g.Key, &g.SourceID, &sources, &g.Title,
		&g.Venue.Name, &g.Venue.Slug, &address, &locality,
		&g.StartAt, &endAt, &description, &ticketURL, &price,
		&g.ContentHash, &status, &g.MissedRuns,
		&g.FirstSeen, &g.LastSeen, &g.LastUpdated,
	)
	if err != nil {
		return gig.Gig{}, err
	}

	g.Sources = sources
	g.EndAt = endAt
	g.Venue.Address = deref(address)
	g.Venue.Locality = deref(locality)
	g.Description = deref(description)
	g.TicketURL = deref(ticketURL)
	g.Price = deref(price)
	g.Status = gig.Status(status)
	return g, nil
}

func sourcesArray(sources []string) []string {
	if sources == nil {
		return []string{}
	}
	return sources
}

func nullableText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
