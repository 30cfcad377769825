package services

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mythologiq/hearthlink-core/domain"
	serrors "github.com/mythologiq/hearthlink-core/errors"
)

// CredentialValidator checks a caller-supplied identifier/secret pair against
// an external account store. Implementations must not reveal whether the
// identifier or the secret was wrong.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, identifier, secret string) (*domain.User, error)
}

// RateLimiter gates expensive operations per client key. The counting backend
// is external; only the decision surface is consumed here.
type RateLimiter interface {
	Allow(clientKey string) bool
}

// BlobStore is the external encrypted persistence medium. Session archives
// are written through it on teardown; it is never reimplemented here.
type BlobStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, blob []byte) error
}

// MemoryCredentialValidator is a bcrypt-backed in-process account directory.
// It serves development and tests; production deployments plug in their own
// CredentialValidator.
type MemoryCredentialValidator struct {
	mu    sync.RWMutex
	users map[string]memoryUser // keyed by email
}

type memoryUser struct {
	user         domain.User
	passwordHash []byte
}

// NewMemoryCredentialValidator creates an empty directory.
func NewMemoryCredentialValidator() *MemoryCredentialValidator {
	return &MemoryCredentialValidator{users: make(map[string]memoryUser)}
}

// AddUser registers an account with a bcrypt-hashed secret.
func (v *MemoryCredentialValidator) AddUser(user domain.User, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.users[user.Email] = memoryUser{user: user, passwordHash: hash}
	return nil
}

// ValidateCredentials implements CredentialValidator.
func (v *MemoryCredentialValidator) ValidateCredentials(_ context.Context, identifier, secret string) (*domain.User, error) {
	v.mu.RLock()
	entry, ok := v.users[identifier]
	v.mu.RUnlock()

	if !ok {
		// Burn a comparison anyway so lookups and mismatches take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return nil, serrors.ErrInvalidCredentials
	}
	if entry.user.Status == domain.UserStatusLocked {
		return nil, serrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(secret)); err != nil {
		return nil, serrors.ErrInvalidCredentials
	}

	user := entry.user
	return &user, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hearthlink-dummy"), bcrypt.MinCost)
