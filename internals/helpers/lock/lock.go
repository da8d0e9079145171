// Package lock provides named, time-bounded leases used to keep a job to a
// single running instance across processes.
package lock

import (
	"context"
	"time"
)

// Locker hands out leases keyed by name. TryAcquire reports false, with a nil
// error, when another holder owns an unexpired lease.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
