// Package keylock serializes work on a single (symbol, market) key.
package keylock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended.
var ErrNotAcquired = errors.New("keylock: not acquired")

// Locker hands out exclusive access to a key. The returned unlock func must be
// called exactly once; later calls are no-ops.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
