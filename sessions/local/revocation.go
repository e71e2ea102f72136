package local

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers the jti of logged-out and refreshed tokens until
// they would have expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
}

// InMemoryRevokedTokenCache holds revoked token IDs in process memory. Every
// Add drops entries whose tokens have expired, so the cache only ever holds
// tokens that could still verify.
type InMemoryRevokedTokenCache struct {
	mu      sync.RWMutex
	expires map[string]time.Time
}

var _ RevokedTokenCache = (*InMemoryRevokedTokenCache)(nil)

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{expires: map[string]time.Time{}}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	now := NowTimeFunc()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, at := range c.expires {
		if !now.Before(at) {
			delete(c.expires, id)
		}
	}
	if now.Before(exp) {
		c.expires[jti] = exp
	}
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.expires[jti]
	return ok
}

// Len reports how many revoked tokens are being tracked.
func (c *InMemoryRevokedTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.expires)
}
