package cache

import (
	"context"
	"time"
)

const runLockPrefix = "scrape:lock:"

// RunLock serializes scraper runs per source across processes using
// SetNX with a TTL slightly past the run timeout, so a crashed run's
// lock expires on its own. With redis unavailable it permits the run
// and leaves exclusion to the orchestrator's in-process guard, which
// still covers single-instance deployments.
type RunLock struct {
	redis *Redis
}

func NewRunLock(r *Redis) *RunLock {
	return &RunLock{redis: r}
}

func (l *RunLock) Acquire(ctx context.Context, sourceID string, ttl time.Duration) (bool, error) {
	if l == nil || l.redis.isUnavailable() {
		return true, nil
	}
	ok, err := l.redis.SetIfNotExists(ctx, runLockPrefix+sourceID, "1", ttl)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *RunLock) Release(ctx context.Context, sourceID string) error {
	if l == nil || l.redis.isUnavailable() {
		return nil
	}
	return l.redis.Delete(ctx, runLockPrefix+sourceID)
}
