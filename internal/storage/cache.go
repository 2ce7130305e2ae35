// cache.go - In-memory session cache

package storage

import (
	"sync"
	"time"

	"github.com/bosocmputer/ocr_translate/internal/ai"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/workflow"
)

// DefaultSessionTTL is used when the cache is created with a zero TTL
const DefaultSessionTTL = 60 * time.Minute

// Entry is one session: its state and the gateway built when the key was saved
type Entry struct {
	State     workflow.State
	Gateway   ai.Gateway
	TouchedAt time.Time
}

// SessionCache maps session ids to entries. Entries idle longer than the
// TTL are invisible to Get and dropped on the next write.
type SessionCache struct {
	entries map[string]Entry
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewSessionCache creates an empty cache
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the live entry for sessionID
func (c *SessionCache) Get(sessionID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[sessionID]
	if !exists || c.expired(entry) {
		return Entry{}, false
	}
	return entry, true
}

// Put stores entry and marks it as touched now. A gateway the entry
// replaces is closed.
func (c *SessionCache) Put(sessionID string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	if old, exists := c.entries[sessionID]; exists && old.Gateway != nil && old.Gateway != entry.Gateway {
		closeGateway(sessionID, old.Gateway)
	}

	entry.TouchedAt = c.now()
	c.entries[sessionID] = entry
}

// Update stores state only while the session still holds gw, the gateway
// the action started with. It reports whether the state was stored.
func (c *SessionCache) Update(sessionID string, gw ai.Gateway, state workflow.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	// a missing session reads as a nil gateway
	if c.entries[sessionID].Gateway != gw {
		return false
	}
	c.entries[sessionID] = Entry{State: state, Gateway: gw, TouchedAt: c.now()}
	return true
}

// Delete removes the session and closes its gateway
func (c *SessionCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[sessionID]; exists {
		closeGateway(sessionID, entry.Gateway)
		delete(c.entries, sessionID)
	}
}

// Len returns the number of stored sessions, expired ones included
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops every session
func (c *SessionCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		closeGateway(id, entry.Gateway)
	}
	c.entries = make(map[string]Entry)
}

// expired must be called with mu held
func (c *SessionCache) expired(entry Entry) bool {
	return c.now().Sub(entry.TouchedAt) >= c.ttl
}

// purgeExpired must be called with mu held for writing
func (c *SessionCache) purgeExpired() {
	for id, entry := range c.entries {
		if c.expired(entry) {
			closeGateway(id, entry.Gateway)
			delete(c.entries, id)
		}
	}
}

func closeGateway(sessionID string, gw ai.Gateway) {
	if gw == nil {
		return
	}
	if err := gw.Close(); err != nil {
		common.Logger().WithField("session_id", sessionID).Warnf("⚠️  Failed to close gateway: %v", err)
	}
}
