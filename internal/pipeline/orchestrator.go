package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gigwatch/internal/config"
	"gigwatch/internal/domain/gig"
	"gigwatch/internal/domain/run"
	"gigwatch/internal/observability"
	"gigwatch/internal/scraper"

	"github.com/google/uuid"
)

// RunLocker serializes runs per source across processes. Acquire
// returning false means another run holds the lock.
type RunLocker interface {
	Acquire(ctx context.Context, sourceID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sourceID string) error
}

type RunStore interface {
	Create(ctx context.Context, r run.ScraperRun) error
	Close(ctx context.Context, id uuid.UUID, status run.Status, counts run.Counts, errMsg string, finishedAt time.Time) error
}

type ErrorLog interface {
	Append(ctx context.Context, e run.ErrorLogEntry) error
}

type RunResult struct {
	SourceID string
	Run      run.ScraperRun
	Err      error
}

// Orchestrator drives one run per source: adapter fetch, normalize,
// classify against stored state, bulk persist, stale sweep, run
// closure. Runs for different sources never share state beyond the
// store's per-key upserts.
type Orchestrator struct {
	adapters *scraper.Registry
	sources  config.Sources
	store    GigStore
	runs     RunStore
	errlog   ErrorLog
	locker   RunLocker
	sink     observability.Sink
	log      *log.Logger
	now      func() time.Time

	guard sync.Map
}

func NewOrchestrator(
	adapters *scraper.Registry,
	sources config.Sources,
	store GigStore,
	runs RunStore,
	errlog ErrorLog,
	locker RunLocker,
	sink observability.Sink,
	logger *log.Logger,
) *Orchestrator {
	if sink == nil {
		sink = observability.NopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		adapters: adapters,
		sources:  sources,
		store:    store,
		runs:     runs,
		errlog:   errlog,
		locker:   locker,
		sink:     sink,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full pipeline pass for a source. The returned
// ScraperRun reflects the closed run; err is non-nil only for run-fatal
// conditions (lock held, fetch failure, store unavailable, timeout).
func (o *Orchestrator) Run(ctx context.Context, sourceID string) (run.ScraperRun, error) {
	if o == nil {
		return run.ScraperRun{}, fmt.Errorf("nil orchestrator")
	}

	cfg, ok := o.sources.ByID(sourceID)
	if !ok {
		return run.ScraperRun{}, fmt.Errorf("unknown source: %s", sourceID)
	}
	adapter, ok := o.adapters.Get(sourceID)
	if !ok {
		return run.ScraperRun{}, fmt.Errorf("no adapter registered for source: %s", sourceID)
	}

	if _, held := o.guard.LoadOrStore(sourceID, struct{}{}); held {
		return run.ScraperRun{}, ErrRunInProgress
	}
	defer o.guard.Delete(sourceID)

	if o.locker != nil {
		got, err := o.locker.Acquire(ctx, sourceID, cfg.RunTimeout+30*time.Second)
		if err != nil {
			return run.ScraperRun{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !got {
			return run.ScraperRun{}, ErrRunInProgress
		}
		defer func() {
			_ = o.locker.Release(context.Background(), sourceID)
		}()
	}

	r := run.ScraperRun{
		ID:        uuid.New(),
		SourceID:  sourceID,
		StartedAt: o.now(),
		Status:    run.StatusRunning,
	}
	if err := o.runs.Create(ctx, r); err != nil {
		return run.ScraperRun{}, fmt.Errorf("create run: %w", err)
	}
	o.sink.RunStarted(observability.RunStartedEvent{RunID: r.ID, SourceID: sourceID, At: r.StartedAt})

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	raws, err := adapter.FetchListings(runCtx)
	if err == nil && len(raws) == 0 {
		err = ErrNoRecords
	}
	if err != nil {
		ferr := &FetchError{SourceID: sourceID, Err: err}
		o.logFailure(r, run.StageFetch, "", nil, ferr.Error())
		return o.close(r, run.StatusFailed, run.Counts{}, ferr.Error()), ferr
	}

	counts := run.Counts{Scraped: len(raws)}

	normalizer := NewNormalizer(cfg)
	batch := make([]gig.Gig, 0, len(raws))
	rawByKey := make(map[string]scraper.RawGig, len(raws))
	for _, raw := range raws {
		g, nerr := normalizer.Normalize(raw, o.now())
		if nerr != nil {
			counts.Failed++
			o.logFailure(r, run.StageNormalize, "", rawPayload(raw), nerr.Error())
			continue
		}
		batch = append(batch, g)
		if _, ok := rawByKey[g.Key]; !ok {
			rawByKey[g.Key] = raw
		}
	}

	if timedOut(runCtx) {
		return o.closeTimeout(r, counts)
	}

	keys := make([]string, 0, len(batch))
	for _, g := range batch {
		keys = append(keys, g.Key)
	}
	existing, err := o.store.FindByKeys(runCtx, keys)
	if err != nil {
		if timedOut(runCtx) {
			return o.closeTimeout(r, counts)
		}
		msg := fmt.Sprintf("store lookup: %v", err)
		o.logFailure(r, run.StagePersist, "", nil, msg)
		return o.close(r, run.StatusFailed, counts, msg), fmt.Errorf("store lookup: %w", err)
	}

	classified := Classify(batch, existing, o.now())
	for _, cl := range classified {
		if cl.Action == ActionSkip {
			counts.Skipped++
		}
	}

	coordinator := NewCoordinator(o.store, cfg.BatchSizeLimit)
	result, err := coordinator.Persist(runCtx, classified)
	if err != nil {
		if timedOut(runCtx) {
			return o.closeTimeout(r, counts)
		}
		msg := fmt.Sprintf("bulk persist: %v", err)
		o.logFailure(r, run.StagePersist, "", nil, msg)
		return o.close(r, run.StatusFailed, counts, msg), fmt.Errorf("bulk persist: %w", err)
	}

	counts.Created = result.Created
	counts.Updated = result.Updated
	counts.Unchanged = result.Unchanged
	for _, f := range result.Failed {
		counts.Failed++
		perr := &PersistenceError{Key: f.Key, Err: f.Err}
		o.logFailure(r, run.StagePersist, f.Key, rawPayloadForKey(rawByKey, f.Key), perr.Error())
	}

	if cfg.StaleAfterRuns > 0 {
		if n, serr := o.store.SweepStale(ctx, sourceID, r.StartedAt, cfg.StaleAfterRuns); serr != nil {
			o.log.Printf("source=%s run=%s stale_sweep_error=%q", sourceID, r.ID, serr.Error())
		} else if n > 0 {
			o.log.Printf("source=%s run=%s stale_flagged=%d", sourceID, r.ID, n)
		}
	}

	status := terminalStatus(counts)
	return o.close(r, status, counts, ""), nil
}

// RunAll executes runs for every source that has both config and an
// adapter. Sources run concurrently; one source failing is invisible
// to the others.
func (o *Orchestrator) RunAll(ctx context.Context, workers int) []RunResult {
	if o == nil {
		return nil
	}
	ids := make([]string, 0)
	for _, id := range o.sources.IDs() {
		if _, ok := o.adapters.Get(id); ok {
			ids = append(ids, id)
		}
	}

	pool := scraper.NewWorkerPool(workers, len(ids))
	results := pool.Run(ctx)

	var mu sync.Mutex
	out := make([]RunResult, 0, len(ids))

	for _, id := range ids {
		id := id
		pool.Submit(func(ctx context.Context) error {
			r, err := o.Run(ctx, id)
			mu.Lock()
			out = append(out, RunResult{SourceID: id, Run: r, Err: err})
			mu.Unlock()
			return err
		})
	}
	pool.Close()
	for range results {
	}

	return out
}

// terminalStatus closes a run whose fetch succeeded. Record-scoped
// failures degrade the run to partial, never to failed; failed is
// reserved for the fatal paths (fetch, store lookup, timeout).
func terminalStatus(c run.Counts) run.Status {
	if c.Failed == 0 {
		return run.StatusCompleted
	}
	return run.StatusPartial
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (o *Orchestrator) closeTimeout(r run.ScraperRun, counts run.Counts) (run.ScraperRun, error) {
	msg := "run timeout exceeded"
	o.logFailure(r, run.StagePersist, "", nil, msg)
	closed := o.close(r, run.StatusFailed, counts, msg)
	return closed, context.DeadlineExceeded
}

// close finalizes the run record and emits the terminal event. Run
// closure must survive the run context being dead, so it uses a fresh
// short-lived context.
func (o *Orchestrator) close(r run.ScraperRun, status run.Status, counts run.Counts, errMsg string) run.ScraperRun {
	finished := o.now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.runs.Close(ctx, r.ID, status, counts, errMsg, finished); err != nil {
		o.log.Printf("run=%s source=%s close_error=%q", r.ID, r.SourceID, err.Error())
	}

	r.Status = status
	r.Counts = counts
	r.Error = errMsg
	r.FinishedAt = &finished

	o.sink.RunFinished(observability.RunFinishedEvent{
		RunID:    r.ID,
		SourceID: r.SourceID,
		Status:   status,
		Counts:   counts,
		Duration: finished.Sub(r.StartedAt),
		Error:    errMsg,
	})
	return r
}

// logFailure writes exactly one error-log entry per individual failure
// and mirrors it to the observability sink. The error log itself
// failing is logged and swallowed; it must not fail the run.
func (o *Orchestrator) logFailure(r run.ScraperRun, stage run.Stage, key string, payload []byte, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry := run.ErrorLogEntry{
		ID:        uuid.New(),
		RunID:     r.ID,
		SourceID:  r.SourceID,
		Stage:     stage,
		RecordKey: key,
		Payload:   payload,
		Message:   msg,
		CreatedAt: o.now(),
	}
	if o.errlog != nil {
		if err := o.errlog.Append(ctx, entry); err != nil {
			o.log.Printf("run=%s source=%s errlog_append_error=%q", r.ID, r.SourceID, err.Error())
		}
	}
	o.sink.RecordFailed(observability.RecordFailedEvent{
		RunID:    r.ID,
		SourceID: r.SourceID,
		Stage:    stage,
		Key:      key,
		Message:  msg,
	})
}

func rawPayload(raw scraper.RawGig) []byte {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return b
}

func rawPayloadForKey(rawByKey map[string]scraper.RawGig, key string) []byte {
	raw, ok := rawByKey[key]
	if !ok {
		return nil
	}
	return rawPayload(raw)
}
