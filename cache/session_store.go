package cache

import (
	"context"
	"time"

	"github.com/mythologiq/hearthlink-core/domain"
)

// SessionStore is the expiring keyed medium behind the auth manager.
// A Get on an expired or unknown key returns (nil, nil): expiry and absence
// are indistinguishable on purpose.
type SessionStore interface {
	Put(ctx context.Context, key string, session *domain.AuthSession, ttl time.Duration) error
	Get(ctx context.Context, key string) (*domain.AuthSession, error)
	Delete(ctx context.Context, key string) error
	// Touch extends the ttl of a live record and stamps LastAccessed.
	// Touching an absent key is a no-op.
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Count(ctx context.Context) int
	Close() error
}
