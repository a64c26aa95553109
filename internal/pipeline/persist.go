package pipeline

import (
	"context"
	"fmt"
	"time"

	"gigwatch/internal/domain/gig"
)

type UpsertOp struct {
	Action Action
	Gig    gig.Gig
}

type OpOutcome struct {
	Key    string
	Action Action
	Err    error
}

type FailedOp struct {
	Key string
	Err error
}

type BulkResult struct {
	Created   int
	Updated   int
	Unchanged int
	Failed    []FailedOp
}

// GigStore is the document-store boundary the coordinator writes
// through. BulkUpsert must report one outcome per op; a single op
// failing must not make the call fail.
type GigStore interface {
	FindByKeys(ctx context.Context, keys []string) (map[string]gig.Gig, error)
	BulkUpsert(ctx context.Context, ops []UpsertOp) ([]OpOutcome, error)
	SweepStale(ctx context.Context, sourceID string, seenBefore time.Time, staleAfter int) (int64, error)
}

// Coordinator turns a classified batch into bounded bulk writes.
type Coordinator struct {
	store      GigStore
	batchLimit int
}

func NewCoordinator(store GigStore, batchLimit int) *Coordinator {
	if batchLimit <= 0 {
		batchLimit = 500
	}
	return &Coordinator{store: store, batchLimit: batchLimit}
}

// Persist applies every create/update/unchanged decision. Batches past
// the limit are chunked whole-record and submitted sequentially. The
// returned error is reserved for the store itself being unusable;
// per-record failures land in the result.
func (c *Coordinator) Persist(ctx context.Context, classified []Classified) (BulkResult, error) {
	var res BulkResult
	if c == nil || c.store == nil {
		return res, fmt.Errorf("nil coordinator/store")
	}

	ops := make([]UpsertOp, 0, len(classified))
	for _, cl := range classified {
		if cl.Action == ActionSkip {
			continue
		}
		ops = append(ops, UpsertOp{Action: cl.Action, Gig: cl.Gig})
	}

	for start := 0; start < len(ops); start += c.batchLimit {
		end := start + c.batchLimit
		if end > len(ops) {
			end = len(ops)
		}
		outcomes, err := c.store.BulkUpsert(ctx, ops[start:end])
		if err != nil {
			return res, err
		}
		for _, o := range outcomes {
			if o.Err != nil {
				res.Failed = append(res.Failed, FailedOp{Key: o.Key, Err: o.Err})
				continue
			}
			switch o.Action {
			case ActionCreate:
				res.Created++
			case ActionUpdate:
				res.Updated++
			case ActionUnchanged:
				res.Unchanged++
			}
		}
	}

	return res, nil
}
