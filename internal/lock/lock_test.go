package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(NewMemoryStore())

	handle, err := locker.Acquire(ctx, "fcfs-coupon:1", 5*time.Second)
	if err != nil {
		t.Fatalf("expected acquire to succeed, got: %v", err)
	}
	if handle.Key != "fcfs-coupon:1" {
		t.Errorf("expected handle key fcfs-coupon:1, got %q", handle.Key)
	}
	if handle.Token == "" {
		t.Error("expected non-empty holder token")
	}

	// Second acquire on the same key must fail fast while held.
	if _, err := locker.Acquire(ctx, "fcfs-coupon:1", 5*time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got: %v", err)
	}

	// Independent keys are unaffected.
	if _, err := locker.Acquire(ctx, "fcfs-coupon:2", 5*time.Second); err != nil {
		t.Fatalf("expected acquire on other key to succeed, got: %v", err)
	}

	if err := locker.Release(ctx, handle); err != nil {
		t.Fatalf("expected release to succeed, got: %v", err)
	}

	// Released lock can be re-acquired before TTL expiry.
	if _, err := locker.Acquire(ctx, "fcfs-coupon:1", 5*time.Second); err != nil {
		t.Fatalf("expected re-acquire after release to succeed, got: %v", err)
	}
}

func TestLocker_ReleaseIsTokenChecked(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	locker := NewLocker(store)

	now := time.Now()
	store.now = func() time.Time { return now }

	first, err := locker.Acquire(ctx, "fcfs-coupon:1", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// TTL passes, the lock self-expires and another holder takes it.
	now = now.Add(2 * time.Second)
	second, err := locker.Acquire(ctx, "fcfs-coupon:1", time.Second)
	if err != nil {
		t.Fatalf("expected acquire after expiry to succeed, got: %v", err)
	}

	// The stale holder's release must not evict the new holder.
	if err := locker.Release(ctx, first); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, err := locker.Acquire(ctx, "fcfs-coupon:1", time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected lock still held by second holder, got: %v", err)
	}

	// The rightful holder can still release.
	if err := locker.Release(ctx, second); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := locker.Acquire(ctx, "fcfs-coupon:1", time.Second); err != nil {
		t.Fatalf("expected re-acquire to succeed, got: %v", err)
	}
}

func TestLocker_ReleaseNilHandle(t *testing.T) {
	locker := NewLocker(NewMemoryStore())
	if err := locker.Release(context.Background(), nil); err != nil {
		t.Fatalf("expected nil handle release to be a no-op, got: %v", err)
	}
}

func TestLocker_SingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(NewMemoryStore())

	const attempts = 64
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(ctx, "fcfs-coupon:1", 5*time.Second); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

type failingStore struct{}

func (failingStore) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) DeleteIfMatch(context.Context, string, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestLocker_StoreUnreachable(t *testing.T) {
	locker := NewLocker(failingStore{})

	_, err := locker.Acquire(context.Background(), "fcfs-coupon:1", time.Second)
	if err == nil {
		t.Fatal("expected connectivity error, got nil")
	}
	if errors.Is(err, ErrNotAcquired) {
		t.Fatal("connectivity failure must not be reported as contention")
	}
}
