// Package memory provides the in-process, TTL-bound token store backing
// anonymous carts. It is the cookie-equivalent described by the cart
// package: entries expire 120 minutes after their last write and a save
// replaces the whole token, so concurrent writers race last-write-wins.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	token     string
	expiresAt time.Time
}

// TokenStore is an in-memory cart.TokenStore implementation.
type TokenStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewTokenStore creates a TokenStore whose entries live for ttl after each
// save.
func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the stored token for the owner key, or "" when the entry is
// absent or expired. Expired entries are dropped lazily on read.
func (s *TokenStore) Get(_ context.Context, ownerKey string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[ownerKey]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[ownerKey]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, ownerKey)
		}
		s.mu.Unlock()
		return "", nil
	}
	return e.token, nil
}

// Save stores the token with a fresh TTL, replacing any previous value.
func (s *TokenStore) Save(_ context.Context, ownerKey, token string) error {
	s.mu.Lock()
	s.entries[ownerKey] = entry{token: token, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Delete expires the owner's token immediately.
func (s *TokenStore) Delete(_ context.Context, ownerKey string) error {
	s.mu.Lock()
	delete(s.entries, ownerKey)
	s.mu.Unlock()
	return nil
}

// StartJanitor sweeps expired entries every interval until ctx is done.
// Reads already drop expired entries lazily; the janitor only bounds memory
// held by owners that never come back.
func (s *TokenStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *TokenStore) sweep() {
	now := s.now()
	s.mu.Lock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}
