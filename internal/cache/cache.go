// Package cache holds the last known credential of a peer.
package cache

import (
	"sync"
	"time"

	"github.com/arloliu/credshare/types"
)

// Cache stores one credential and enforces its TTL on every read.
//
// Writers are the coordinator event loop; readers are consumers on
// arbitrary goroutines.
type Cache struct {
	clock types.Clock

	mu   sync.RWMutex
	cred types.Credential
	has  bool
}

// New creates an empty cache that judges freshness with clock.
func New(clock types.Clock) *Cache {
	return &Cache{clock: clock}
}

// Store replaces the cached credential.
//
// Returns:
//   - bool: false when cred is older than the cached value and was ignored
func (c *Cache) Store(cred types.Credential) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.has && cred.IssuedAt.Before(c.cred.IssuedAt) {
		return false
	}

	c.cred = cred
	c.has = true

	return true
}

// Clear drops the cached credential.
//
// Returns:
//   - bool: true if a credential was dropped
func (c *Cache) Clear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	had := c.has
	c.cred = types.Credential{}
	c.has = false

	return had
}

// Get returns the cached credential if it is still valid.
//
// Returns:
//   - types.Credential: The cached credential
//   - error: types.ErrNoCredential if empty, types.ErrCredentialExpired once
//     now >= issuedAt + TTL
func (c *Cache) Get() (types.Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.has {
		return types.Credential{}, types.ErrNoCredential
	}
	if c.cred.Expired(c.clock.Now()) {
		return types.Credential{}, types.ErrCredentialExpired
	}

	return c.cred, nil
}

// FreshFor reports whether the cached credential stays valid for at least d.
func (c *Cache) FreshFor(d time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.has {
		return false
	}

	return c.cred.Remaining(c.clock.Now()) > d
}
