package lock

import (
	"context"
	"errors"
)

// ErrHeld means another import for the same user is still running. Concurrent
// same-user imports must be serialized or last-import-wins upserts could
// interleave non-deterministically.
var ErrHeld = errors.New("import lock already held")

// Locker serializes imports per user. Acquire returns a release func bound to
// this acquisition; releasing someone else's lock is a no-op.
type Locker interface {
	Acquire(ctx context.Context, userID string) (func(context.Context), error)
	Close() error
}

// NoopLocker allows everything. Used when redis is unavailable: a
// single-instance deployment still serializes uploads per HTTP connection,
// so losing the lock degrades safety only for multi-instance setups.
type NoopLocker struct{}

func NewNoopLocker() *NoopLocker {
	return &NoopLocker{}
}

func (l *NoopLocker) Acquire(_ context.Context, _ string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

func (l *NoopLocker) Close() error {
	return nil
}
