package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/domain"
)

// SessionStore implements cache.SessionStore using Redis. Records are stored
// as JSON values with a key-level TTL, so expiry is enforced by Redis itself.
type SessionStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewSessionStore creates a new [SessionStore] instance.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (r *SessionStore) redisKey(key string) string {
	return fmt.Sprintf("%s:authsession:%s", r.prefix, key)
}

// Put stores a session record with the given ttl.
func (r *SessionStore) Put(ctx context.Context, key string, session *domain.AuthSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

// Get retrieves a session record. Expired or absent keys yield (nil, nil).
func (r *SessionStore) Get(ctx context.Context, key string) (*domain.AuthSession, error) {
	payload, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.AuthSession
	if err := json.Unmarshal(payload, &session); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("dropping undecodable session record")
		return nil, nil
	}
	return &session, nil
}

// Delete removes a session record. Deleting an absent key is not an error.
func (r *SessionStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

// Touch rewrites a live record with a fresh ttl and LastAccessed stamp.
func (r *SessionStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	session, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	session.LastAccessed = time.Now()
	session.ExpiresAt = time.Now().Add(ttl)
	return r.Put(ctx, key, session, ttl)
}

// Count returns the number of live session keys under this store's prefix.
func (r *SessionStore) Count(ctx context.Context) int {
	var count int
	iter := r.client.Scan(ctx, 0, r.redisKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("session scan failed")
	}
	return count
}

// Close releases the underlying client.
func (r *SessionStore) Close() error {
	return r.client.Close()
}
