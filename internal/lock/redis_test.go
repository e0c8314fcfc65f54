package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLocker(t *testing.T) *RedisLocker {
	t.Helper()

	mr := miniredis.RunT(t)
	locker, err := NewRedisLocker(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("new locker failed: %v", err)
	}
	t.Cleanup(func() {
		_ = locker.Close()
	})
	return locker
}

func TestAcquireBlocksSecondImportForSameUser(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.Acquire(ctx, "user-1"); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld for concurrent same-user import, got %v", err)
	}

	release(ctx)

	if _, err := locker.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestAcquireAllowsDistinctUsersConcurrently(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("acquire user-1 failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "user-2"); err != nil {
		t.Fatalf("acquire user-2 failed: %v", err)
	}
}

func TestReleaseDoesNotStealSuccessorLock(t *testing.T) {
	mr := miniredis.RunT(t)
	locker, err := NewRedisLocker(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("new locker failed: %v", err)
	}
	t.Cleanup(func() {
		_ = locker.Close()
	})
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Simulate the lock expiring under a slow import, then a new import
	// taking it over.
	mr.FastForward(2 * time.Minute)
	if _, err := locker.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}

	staleRelease(ctx)

	if _, err := locker.Acquire(ctx, "user-1"); !errors.Is(err, ErrHeld) {
		t.Fatal("stale release must not free the successor's lock")
	}
}

func TestNoopLockerAllowsEverything(t *testing.T) {
	locker := NewNoopLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("noop acquire failed: %v", err)
	}
	release(ctx)

	if _, err := locker.Acquire(ctx, "user-1"); err != nil {
		t.Fatalf("noop acquire failed: %v", err)
	}
}
