// Package lock provides a named, time-bounded mutual-exclusion primitive
// shared across all service instances. Ownership is established with an
// atomic set-if-absent-with-expiry against a backing store and released
// with a token-checked delete, so a holder can never delete a lock that
// was re-acquired by someone else after its TTL expired.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned by Acquire when another holder currently
// owns the resource. Acquisition is non-blocking; the caller decides
// whether to fail fast or retry.
var ErrNotAcquired = errors.New("lock: resource already held")

// Store is the atomic key-value contract the lock is built on. Any
// backend offering conditional set-with-expiry and token-checked delete
// can serve as a lock store.
type Store interface {
	// SetIfAbsent writes token under key with the given TTL only if the
	// key does not exist. Returns true when ownership was established.
	SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// DeleteIfMatch removes key only if it still holds token. Returns
	// true when a delete happened, false when the key expired or was
	// re-acquired by another holder.
	DeleteIfMatch(ctx context.Context, key, token string) (bool, error)
}

// Handle identifies one successful acquisition. It is ephemeral and
// never persisted.
type Handle struct {
	Key   string
	Token string
	TTL   time.Duration
}

// Locker coordinates distributed locks over a Store.
type Locker struct {
	store Store
}

// NewLocker creates a Locker backed by the given store.
func NewLocker(store Store) *Locker {
	return &Locker{store: store}
}

// Acquire attempts to take exclusive ownership of key for up to ttl.
// It returns ErrNotAcquired immediately when the lock is held elsewhere
// and a connectivity error when the store is unreachable.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, error) {
	token := uuid.NewString()

	ok, err := l.store.SetIfAbsent(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("lock store set: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Handle{Key: key, Token: token, TTL: ttl}, nil
}

// Release gives up the lock identified by handle. Releasing a lock that
// already expired or changed hands is not an error; the token check
// simply turns it into a no-op.
func (l *Locker) Release(ctx context.Context, handle *Handle) error {
	if handle == nil {
		return nil
	}

	if _, err := l.store.DeleteIfMatch(ctx, handle.Key, handle.Token); err != nil {
		return fmt.Errorf("lock store delete: %w", err)
	}

	return nil
}
