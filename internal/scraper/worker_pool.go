package scraper

import (
	"context"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

type Result struct {
	Err error
}

// WorkerPool runs fetch tasks concurrently with an optional global
// rate limit, so detail-page fetches don't hammer a venue's site.
type WorkerPool struct {
	workers int
	tasks   chan Task

	// quit closes when the run context is cancelled, so a blocked
	// Submit never outlives its workers.
	quit     chan struct{}
	quitOnce sync.Once

	wg sync.WaitGroup

	mu sync.RWMutex
	// rateStop closes whenever the ticker feeding rate is stopped or
	// replaced. Workers waiting on a stale rate channel must be woken,
	// not stranded on a ticker that will never fire again.
	rate     <-chan time.Time
	rateStop chan struct{}
	ticker   *time.Ticker
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, buffer),
		quit:    make(chan struct{}),
	}
}

func (p *WorkerPool) SetRateLimit(rps int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopRateLocked()
	if rps <= 0 {
		return
	}
	p.ticker = time.NewTicker(time.Second / time.Duration(rps))
	p.rate = p.ticker.C
	p.rateStop = make(chan struct{})
}

func (p *WorkerPool) stopRateLocked() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	p.ticker = nil
	p.rate = nil
	close(p.rateStop)
	p.rateStop = nil
}

// Submit queues a task. It gives up instead of blocking once the run
// context has been cancelled; the task is dropped, which is what a
// cancelled run wants.
func (p *WorkerPool) Submit(t Task) {
	if p == nil || t == nil {
		return
	}
	select {
	case p.tasks <- t:
	case <-p.quit:
	}
}

// Close stops intake. Queued tasks still run; the rate limit is lifted
// so the drain is not throttled.
func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stopRateLocked()
	p.mu.Unlock()
	close(p.tasks)
}

func (p *WorkerPool) Run(ctx context.Context) <-chan Result {
	if p == nil {
		out := make(chan Result)
		close(out)
		return out
	}
	buf := p.workers * 1024
	if buf < 1 {
		buf = 1
	}
	out := make(chan Result, buf)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					if t == nil {
						continue
					}
					p.mu.RLock()
					rate, rateStop := p.rate, p.rateStop
					p.mu.RUnlock()
					if rate != nil {
						select {
						case <-ctx.Done():
							return
						case <-rateStop:
						case <-rate:
						}
					}
					err := t(ctx)
					select {
					case <-ctx.Done():
						return
					case out <- Result{Err: err}:
					}
				}
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(out)
		close(finished)
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
			if ctx.Err() == nil {
				return
			}
		}
		p.quitOnce.Do(func() { close(p.quit) })
	}()

	return out
}
