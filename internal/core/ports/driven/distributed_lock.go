package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates the scheduler across worker instances so a
// scheduled task is enqueued once per interval.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false if another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Safe to call if the lock has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a held lock. Not every backend supports it.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
