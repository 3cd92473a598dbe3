package store

import (
	"context"
)

// Store is the persistence contract shared by TaskManager, PoolManager,
// DiscoveryService, and runtime checkpointing. Values are opaque bytes;
// callers serialize. A missing key is not an error: Get returns (nil, nil).
type Store interface {
	// Put stores a value under a key, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves a value. It returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix in sorted order.
	List(ctx context.Context, prefix string) ([]string, error)

	// PutIfAbsent stores the value only when the key is absent and reports
	// whether it stored. Implementations make this atomic.
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Close releases backend resources.
	Close() error
}
