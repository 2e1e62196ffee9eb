// Package locks implements named, expiring mutual-exclusion rows. A lock is
// held by an opaque holder token until it is released or expires.
package locks

import (
	"context"
	"time"
)

type Repository interface {
	// TryAcquire takes name for holder until the given time if the lock is
	// free or expired at now. It never waits.
	TryAcquire(ctx context.Context, name, holder string, now, until time.Time) (bool, error)
	// Release frees name only if holder still owns it.
	Release(ctx context.Context, name, holder string) error
	// Holder returns common.ErrorNotFound when nobody holds name.
	Holder(ctx context.Context, name string) (string, time.Time, error)
}
