// Package blocklist keeps an in-memory set of suspended user ids.
//
// The set is a derived accelerator: the users table stays authoritative and
// every mutation of a block flag is paired with Add/Remove by the caller. A
// crash between the two leaves the cache stale until the next Initialize.
package blocklist

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
)

// Source lists the ids of all currently blocked users.
type Source interface {
	ListBlockedIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Cache is a concurrency-safe set of blocked user ids.
type Cache struct {
	mu  sync.RWMutex
	ids map[uuid.UUID]struct{}
}

// New returns an empty cache. Call Initialize once at startup.
func New() *Cache {
	return &Cache{ids: make(map[uuid.UUID]struct{})}
}

// Initialize replaces the contents with the blocked ids read from src.
func (c *Cache) Initialize(ctx context.Context, src Source) error {
	ids, err := src.ListBlockedIDs(ctx)
	if err != nil {
		return fmt.Errorf("blocklist: load: %w", err)
	}
	next := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	c.mu.Lock()
	c.ids = next
	c.mu.Unlock()
	return nil
}

// Add marks id as blocked. Idempotent.
func (c *Cache) Add(id uuid.UUID) {
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
}

// Remove unmarks id. Idempotent.
func (c *Cache) Remove(id uuid.UUID) {
	c.mu.Lock()
	delete(c.ids, id)
	c.mu.Unlock()
}

// Set applies a block flag value.
func (c *Cache) Set(id uuid.UUID, blocked bool) {
	if blocked {
		c.Add(id)
		return
	}
	c.Remove(id)
}

// Contains reports whether id is blocked.
func (c *Cache) Contains(id uuid.UUID) bool {
	c.mu.RLock()
	_, ok := c.ids[id]
	c.mu.RUnlock()
	return ok
}

// Len returns the number of blocked ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
