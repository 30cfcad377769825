package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/mythologiq/hearthlink-core/domain"
)

// MemorySessionStore implements SessionStore using ttlcache.
type MemorySessionStore struct {
	cache *ttlcache.Cache[string, *domain.AuthSession]
}

// NewMemorySessionStore creates a new in-memory session store with automatic
// cleanup of expired records.
func NewMemorySessionStore() *MemorySessionStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthSession](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemorySessionStore{cache: cache}
}

// Put implements SessionStore.Put.
func (s *MemorySessionStore) Put(_ context.Context, key string, session *domain.AuthSession, ttl time.Duration) error {
	s.cache.Set(key, session, ttl)
	return nil
}

// Get implements SessionStore.Get. The returned record is a copy, so callers
// never share mutable state with the store.
func (s *MemorySessionStore) Get(_ context.Context, key string) (*domain.AuthSession, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, nil
	}
	session := *item.Value()
	session.Roles = append([]string(nil), session.Roles...)
	return &session, nil
}

// Delete implements SessionStore.Delete.
func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Touch implements SessionStore.Touch by re-inserting the live record with a
// fresh ttl and LastAccessed stamp.
func (s *MemorySessionStore) Touch(_ context.Context, key string, ttl time.Duration) error {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil
	}
	session := *item.Value()
	session.LastAccessed = time.Now()
	session.ExpiresAt = time.Now().Add(ttl)
	s.cache.Set(key, &session, ttl)
	return nil
}

// Count returns the number of live records.
func (s *MemorySessionStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() error {
	s.cache.Stop()
	return nil
}
