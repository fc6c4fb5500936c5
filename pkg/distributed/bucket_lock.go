package distributed

import (
	"context"
	"fmt"
	"time"
)

// BucketLockManager serializes grouping passes per (region, mode) bucket
// across instances. A pass that fails to take the lock simply skips; the
// bucket's next trigger retries.
type BucketLockManager struct {
	manager *RedisLockManager
	owner   string
	ttl     time.Duration
}

// NewBucketLockManager creates a bucket lock manager. owner identifies this
// instance and guards against releasing a lock that expired and was re-taken.
func NewBucketLockManager(manager *RedisLockManager, owner string, ttl time.Duration) *BucketLockManager {
	return &BucketLockManager{
		manager: manager,
		owner:   owner,
		ttl:     ttl,
	}
}

// Lock tries to take a bucket's pass lock once. When acquired it returns a
// release func; when held elsewhere it reports acquired=false without error.
func (b *BucketLockManager) Lock(ctx context.Context, region, mode string) (func(), bool, error) {
	key := fmt.Sprintf("matchmaking:lock:%s:%s", region, mode)

	lock, err := b.manager.AcquireLock(ctx, key, b.owner, b.ttl)
	if err == ErrLockNotAcquired {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	release := func() {
		_ = lock.Release(context.Background())
	}
	return release, true, nil
}
