package store

import (
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// GlobalCache is the volatile in-memory cache the event pipeline writes
// global-feed events into instead of the badger store. Entries expire TTL
// after insertion and are swept lazily on access plus periodically by
// Sweep.
type GlobalCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]globalEntry
}

type globalEntry struct {
	event    *nostr.Event
	expireAt time.Time
}

// NewGlobalCache creates a cache with the given per-entry TTL.
func NewGlobalCache(ttl time.Duration) *GlobalCache {
	return &GlobalCache{ttl: ttl, entries: make(map[string]globalEntry)}
}

// Put inserts or refreshes an event's expiry.
func (c *GlobalCache) Put(e *nostr.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ID] = globalEntry{event: e, expireAt: time.Now().Add(c.ttl)}
}

// Has reports whether id is present and unexpired.
func (c *GlobalCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[id]
	if !ok {
		return false
	}
	if time.Now().After(ent.expireAt) {
		delete(c.entries, id)
		return false
	}
	return true
}

// Get returns the cached event, if present and unexpired.
func (c *GlobalCache) Get(id string) (*nostr.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expireAt) {
		delete(c.entries, id)
		return nil, false
	}
	return ent.event, true
}

// Recent returns every unexpired cached event, newest first.
func (c *GlobalCache) Recent(limit int) []*nostr.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	var out []*nostr.Event
	for id, ent := range c.entries {
		if now.After(ent.expireAt) {
			delete(c.entries, id)
			continue
		}
		out = append(out, ent.event)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt > out[i].CreatedAt {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Sweep drops every expired entry; callers run it on a periodic timer
// alongside feed recomputation.
func (c *GlobalCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, ent := range c.entries {
		if now.After(ent.expireAt) {
			delete(c.entries, id)
		}
	}
}
