package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gigwatch/internal/domain/gig"
)

// fakeGigStore is an in-memory GigStore. failKeys marks records whose
// writes fail; failAll makes BulkUpsert itself unusable.
type fakeGigStore struct {
	mu       sync.Mutex
	gigs     map[string]gig.Gig
	failKeys map[string]error
	failAll  error
	findErr  error
	sweepN   int64
	sweepErr error

	batches []int
	swept   []string
}

func newFakeGigStore() *fakeGigStore {
	return &fakeGigStore{gigs: map[string]gig.Gig{}, failKeys: map[string]error{}}
}

func (f *fakeGigStore) FindByKeys(_ context.Context, keys []string) (map[string]gig.Gig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make(map[string]gig.Gig)
	for _, k := range keys {
		if g, ok := f.gigs[k]; ok {
			out[k] = g
		}
	}
	return out, nil
}

func (f *fakeGigStore) BulkUpsert(_ context.Context, ops []UpsertOp) ([]OpOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.batches = append(f.batches, len(ops))

	out := make([]OpOutcome, 0, len(ops))
	for _, op := range ops {
		if err, bad := f.failKeys[op.Gig.Key]; bad {
			out = append(out, OpOutcome{Key: op.Gig.Key, Action: op.Action, Err: err})
			continue
		}
		f.gigs[op.Gig.Key] = op.Gig
		out = append(out, OpOutcome{Key: op.Gig.Key, Action: op.Action})
	}
	return out, nil
}

func (f *fakeGigStore) SweepStale(_ context.Context, sourceID string, _ time.Time, _ int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	f.swept = append(f.swept, sourceID)
	return f.sweepN, nil
}

// Titles carry the action so mixed batches never collide on one
// identity key.
func classifiedBatch(n int, action Action) []Classified {
	start := time.Date(2026, 7, 12, 19, 0, 0, 0, time.UTC)
	out := make([]Classified, 0, n)
	for i := 0; i < n; i++ {
		g := mkGig("croft", fmt.Sprintf("%s act %d", action, i), "bristol-the-croft", start)
		out = append(out, Classified{Gig: g, Action: action})
	}
	return out
}

func TestPersistCountsPerAction(t *testing.T) {
	store := newFakeGigStore()
	c := NewCoordinator(store, 500)

	batch := append(classifiedBatch(3, ActionCreate), classifiedBatch(2, ActionUpdate)...)
	batch = append(batch, Classified{Gig: mkGig("croft", "skip me", "x", time.Now()), Action: ActionSkip})

	res, err := c.Persist(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 3 || res.Updated != 2 || len(res.Failed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(store.gigs) != 5 {
		t.Errorf("stored %d, want 5 (skips never reach the store)", len(store.gigs))
	}
}

func TestPersistChunksAtBatchLimit(t *testing.T) {
	store := newFakeGigStore()
	c := NewCoordinator(store, 10)

	res, err := c.Persist(context.Background(), classifiedBatch(25, ActionCreate))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 25 {
		t.Errorf("created = %d", res.Created)
	}
	want := []int{10, 10, 5}
	if len(store.batches) != len(want) {
		t.Fatalf("batches = %v, want %v", store.batches, want)
	}
	for i, n := range want {
		if store.batches[i] != n {
			t.Errorf("batch %d = %d, want %d", i, store.batches[i], n)
		}
	}
}

func TestPersistIsolatesRecordFailures(t *testing.T) {
	store := newFakeGigStore()
	batch := classifiedBatch(4, ActionCreate)
	store.failKeys[batch[1].Gig.Key] = errors.New("duplicate key value")

	res, err := NewCoordinator(store, 500).Persist(context.Background(), batch)
	if err != nil {
		t.Fatalf("a single bad record must not fail the batch: %v", err)
	}
	if res.Created != 3 {
		t.Errorf("created = %d, want 3", res.Created)
	}
	if len(res.Failed) != 1 || res.Failed[0].Key != batch[1].Gig.Key {
		t.Errorf("failed = %+v", res.Failed)
	}
}

func TestPersistStoreUnusable(t *testing.T) {
	store := newFakeGigStore()
	store.failAll = errors.New("connection refused")

	_, err := NewCoordinator(store, 500).Persist(context.Background(), classifiedBatch(2, ActionCreate))
	if err == nil {
		t.Fatal("expected store-level error")
	}
}

// Replaying the same classified batch must converge: the second pass is
// all unchanged-shaped writes against identical keys, never new rows.
func TestPersistIdempotentReplay(t *testing.T) {
	store := newFakeGigStore()
	c := NewCoordinator(store, 500)

	batch := classifiedBatch(3, ActionCreate)
	if _, err := c.Persist(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Persist(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if len(store.gigs) != 3 {
		t.Errorf("stored %d, want 3 after replay", len(store.gigs))
	}
}
