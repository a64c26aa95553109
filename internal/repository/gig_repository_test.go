package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gigwatch/internal/database"
	"gigwatch/internal/domain/gig"
	"gigwatch/internal/pipeline"
)

type execCall struct {
	query string
	args  []any
}

// fakeDB records every statement and serves canned rows. Error
// injection matches on a SQL substring.
type fakeDB struct {
	execs    []execCall
	execErr  map[string]error
	rows     *fakeRows
	queryErr error
	txs      []*fakeTx
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close() error               { return nil }

func (f *fakeDB) Exec(_ context.Context, query string, args ...any) (int64, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	for frag, err := range f.execErr {
		if strings.Contains(query, frag) {
			return 0, err
		}
	}
	return 1, nil
}

func (f *fakeDB) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		return &fakeRows{}, nil
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) database.Row {
	return &fakeRow{}
}

func (f *fakeDB) Begin(context.Context) (database.Tx, error) {
	tx := &fakeTx{db: f}
	f.txs = append(f.txs, tx)
	return tx, nil
}

type fakeTx struct {
	db         *fakeDB
	execs      []execCall
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, query string, args ...any) (int64, error) {
	t.execs = append(t.execs, execCall{query: query, args: args})
	for frag, err := range t.db.execErr {
		if strings.Contains(query, frag) {
			return 0, err
		}
	}
	return 1, nil
}

func (t *fakeTx) Query(context.Context, string, ...any) (database.Rows, error) {
	return &fakeRows{}, nil
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) database.Row { return &fakeRow{} }

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dests for %d values", len(dest), len(row))
	}
	for i, src := range row {
		if err := assign(dest[i], src); err != nil {
			return fmt.Errorf("scan col %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		d2, ok := src.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", src)
		}
		*d = d2
	case **string:
		if src == nil {
			*d = nil
			return nil
		}
		v := src.(string)
		*d = &v
	case *[]string:
		*d = src.([]string)
	case *int:
		*d = src.(int)
	case *time.Time:
		*d = src.(time.Time)
	case **time.Time:
		if src == nil {
			*d = nil
			return nil
		}
		v := src.(time.Time)
		*d = &v
	default:
		return fmt.Errorf("unsupported dest %T", dest)
	}
	return nil
}

type fakeRow struct{}

func (fakeRow) Scan(...any) error { return nil }

func storedGigRow(key string) []any {
	start := time.Date(2026, 7, 12, 19, 0, 0, 0, time.UTC)
	seen := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	return []any{
		key, "croft", []string{}, "Ramblers",
		"The Croft", "bristol-the-croft", nil, nil,
		start, nil, nil, nil, "£10",
		"hash-1", "active", 0,
		seen, seen, seen,
	}
}

func TestGigStoreFindByKeys(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{storedGigRow("gig-aaa"), storedGigRow("gig-bbb")}}}
	s := NewPostgresGigStore(db)

	out, err := s.FindByKeys(context.Background(), []string{"gig-aaa", "gig-bbb", "gig-missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d gigs, want 2", len(out))
	}
	g := out["gig-aaa"]
	if g.SourceID != "croft" || g.Venue.Slug != "bristol-the-croft" || g.Price != "£10" {
		t.Errorf("scanned gig = %+v", g)
	}
	if g.Status != gig.StatusActive {
		t.Errorf("status = %s", g.Status)
	}
}

func TestGigStoreFindByKeysEmpty(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("must not be called")}
	s := NewPostgresGigStore(db)

	out, err := s.FindByKeys(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty key set must short-circuit: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d gigs", len(out))
	}
}

func newStoredGig(key string) gig.Gig {
	return gig.Gig{
		Key:      key,
		SourceID: "croft",
		Title:    "Ramblers",
		Venue:    gig.Venue{Name: "The Croft", Slug: "bristol-the-croft"},
		StartAt:  time.Date(2026, 7, 12, 19, 0, 0, 0, time.UTC),
		Status:   gig.StatusActive,
		Performances: []gig.Performance{
			{GigKey: key, StartAt: time.Date(2026, 7, 12, 19, 0, 0, 0, time.UTC)},
		},
	}
}

func TestGigStoreUpsertRunsInOneTransaction(t *testing.T) {
	db := &fakeDB{}
	s := NewPostgresGigStore(db)

	outcomes, err := s.BulkUpsert(context.Background(), []pipeline.UpsertOp{
		{Action: pipeline.ActionCreate, Gig: newStoredGig("gig-aaa")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	if len(db.txs) != 1 {
		t.Fatalf("tx count = %d", len(db.txs))
	}
	tx := db.txs[0]
	if !tx.committed {
		t.Error("upsert must commit")
	}

	var sawUpsert, sawDelete, sawInsertPerf bool
	for _, e := range tx.execs {
		switch {
		case strings.Contains(e.query, "INSERT INTO gigs"):
			sawUpsert = true
			if !strings.Contains(e.query, "ON CONFLICT (identity_key) DO UPDATE") {
				t.Error("gig insert must be an upsert by identity key")
			}
			if !strings.Contains(e.query, "first_seen = gigs.first_seen") {
				t.Error("upsert must preserve first_seen")
			}
		case strings.Contains(e.query, "DELETE FROM gig_performances"):
			sawDelete = true
		case strings.Contains(e.query, "INSERT INTO gig_performances"):
			sawInsertPerf = true
		}
	}
	if !sawUpsert || !sawDelete || !sawInsertPerf {
		t.Errorf("statements = %v %v %v", sawUpsert, sawDelete, sawInsertPerf)
	}
}

func TestGigStoreBulkUpsertIsolatesFailures(t *testing.T) {
	db := &fakeDB{execErr: map[string]error{"INSERT INTO gigs": errors.New("value too long")}}
	s := NewPostgresGigStore(db)

	outcomes, err := s.BulkUpsert(context.Background(), []pipeline.UpsertOp{
		{Action: pipeline.ActionCreate, Gig: newStoredGig("gig-aaa")},
		{Action: pipeline.ActionUnchanged, Gig: newStoredGig("gig-bbb")},
	})
	if err != nil {
		t.Fatalf("record failures must not fail the call: %v", err)
	}
	if outcomes[0].Err == nil {
		t.Error("first op should have failed")
	}
	if outcomes[1].Err != nil {
		t.Errorf("second op: %v", outcomes[1].Err)
	}
	if db.txs[0].committed {
		t.Error("failed upsert must not commit")
	}
	if !db.txs[0].rolledBack {
		t.Error("failed upsert must roll back")
	}
}

func TestGigStoreUnchangedBumpsSightingOnly(t *testing.T) {
	db := &fakeDB{}
	s := NewPostgresGigStore(db)

	_, err := s.BulkUpsert(context.Background(), []pipeline.UpsertOp{
		{Action: pipeline.ActionUnchanged, Gig: newStoredGig("gig-aaa")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(db.txs) != 0 {
		t.Error("sighting bump must not open a transaction")
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0].query, "missed_runs = 0") {
		t.Errorf("execs = %+v", db.execs)
	}
}

func TestGigStoreSweepStale(t *testing.T) {
	db := &fakeDB{}
	s := NewPostgresGigStore(db)

	n, err := s.SweepStale(context.Background(), "croft", time.Now(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("flagged = %d", n)
	}
	if len(db.execs) != 2 {
		t.Fatalf("execs = %d, want increment then flag", len(db.execs))
	}
	if !strings.Contains(db.execs[0].query, "missed_runs + 1") {
		t.Errorf("first statement = %q", db.execs[0].query)
	}
	if !strings.Contains(db.execs[1].query, "status = 'stale'") {
		t.Errorf("second statement = %q", db.execs[1].query)
	}
	for _, e := range db.execs {
		if strings.Contains(e.query, "DELETE") {
			t.Error("sweep must never delete")
		}
	}
}

func TestGigStoreSweepDisabled(t *testing.T) {
	db := &fakeDB{}
	s := NewPostgresGigStore(db)

	n, err := s.SweepStale(context.Background(), "croft", time.Now(), 0)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if len(db.execs) != 0 {
		t.Error("disabled sweep must not touch the store")
	}
}
