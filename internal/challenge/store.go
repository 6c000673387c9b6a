package challenge

import "context"

// Store holds the active challenge per flow-scoped key.
//
// Error Contract:
// - Return ErrNotFound when no active challenge exists for the key
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
type Store interface {
	Put(ctx context.Context, key string, ch *Challenge) error
	Get(ctx context.Context, key string) (*Challenge, error)
	Delete(ctx context.Context, key string) error
}
