// Package kv defines the key-value persistence capability used for
// conversation-record storage, along with its sentinel errors. Any backing
// store (in-memory, Redis, PostgreSQL) satisfies the contract; callers that
// need best-effort semantics wrap a Store in conversation.Sessions, which
// absorbs every fault.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a minimal key-value capability with safe concurrent access.
// No transactional guarantee is assumed; concurrent writers to the same
// key settle last-write-wins.
type Store interface {
	// Get retrieves the value stored under key. Returns ErrNotFound when
	// the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}
