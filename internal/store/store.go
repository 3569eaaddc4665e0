package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrConflict = errors.New("value changed since read")
)

// Store is the expiring key-value contract rooms and shared games live in.
// Implementations may be process-local (Memory) or a managed service with
// native expiry (Redis).
type Store interface {
	// Get returns the stored value, or ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value unconditionally. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Swap writes value only if the current value equals old. A nil old means
	// the key must not exist yet. Returns ErrConflict otherwise.
	Swap(ctx context.Context, key string, old, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by backends without native expiry. Sweep drops
// expired entries and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}
