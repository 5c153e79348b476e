// Package cache defines the caching interface used by the HTTP request layer.
// The production implementation is the store's cache table.
package cache

import "context"

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Null is a Cacher that never hits. Useful for tests and tools that do not
// want persistence.
type Null struct{}

func (Null) GetCache(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (Null) SetCache(ctx context.Context, key string, val []byte) error {
	return nil
}
