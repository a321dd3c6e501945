package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fullSyncLockKey is the single Redis key guarding full-repository scans
// across coordinator processes sharing a graph.
const fullSyncLockKey = "memento:fullsync:lock"

// FullSyncLock serializes full-repository scans against a shared graph so
// two coordinator processes don't race a scan. Backed by Redis when
// configured (adapted from the teacher's db/repository/redis.go
// AcquireLock/ReleaseLock), and degrading to a local mutex otherwise — the
// same degrade-gracefully shape the teacher's CompositeRepository uses for
// an unconfigured backend.
type FullSyncLock struct {
	client *redis.Client
	local sync.Mutex
}

// NewLocalFullSyncLock returns a lock backed only by an in-process mutex,
// for single-process deployments with no Redis configured.
func NewLocalFullSyncLock() *FullSyncLock {
	return &FullSyncLock{}
}

// NewRedisFullSyncLock returns a lock backed by the Redis instance at url.
func NewRedisFullSyncLock(url string) (*FullSyncLock, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &FullSyncLock{client: client}, nil
}

// Acquire blocks until the lock is held or ctx is cancelled. With Redis
// configured it polls SetNX with a TTL so a crashed holder doesn't wedge the
// lock forever; otherwise it takes the local mutex.
func (l *FullSyncLock) Acquire(ctx context.Context, ttl time.Duration) error {
	if l.client == nil {
		l.local.Lock()
		return nil
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullSyncLockKey, "1", ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release gives up the lock.
func (l *FullSyncLock) Release(ctx context.Context) error {
	if l.client == nil {
		l.local.Unlock()
		return nil
	}
	return l.client.Del(ctx, fullSyncLockKey).Err()
}
