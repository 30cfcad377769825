package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mythologiq/hearthlink-core/cache"
	"github.com/mythologiq/hearthlink-core/domain"
	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitCustomMetrics(prometheus.NewRegistry())
	os.Exit(m.Run())
}

func newTestAuthService(t *testing.T) (*AuthService, cache.SessionStore) {
	t.Helper()

	store := cache.NewMemorySessionStore()
	t.Cleanup(func() { _ = store.Close() })

	validator := NewMemoryCredentialValidator()
	require.NoError(t, validator.AddUser(domain.User{
		ID:     "user-a",
		Email:  "a@x.com",
		Roles:  []string{"member"},
		Status: domain.UserStatusActive,
	}, "pw"))

	auth := NewAuthService(newTestTokenService(), store, validator, time.Hour, 7*24*time.Hour)
	return auth, store
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "cli/test")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.ExpiresAt, 5*time.Second)

	claims, err := auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.SubjectID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.SessionID)
}

func TestAuthService_LoginInvalidCredentials(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := auth.Login(ctx, "a@x.com", "wrong", "")
	assert.ErrorIs(t, err, serrors.ErrInvalidCredentials)

	_, err = auth.Login(ctx, "nobody@x.com", "pw", "")
	assert.ErrorIs(t, err, serrors.ErrInvalidCredentials)
}

func TestAuthService_ValidateRejectsRefreshToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)

	_, err = auth.Validate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestAuthService_LogoutRevokesAccessToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)

	claims, err := auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, claims.SessionID))

	// Signature and expiry are still nominally valid, yet the credential
	// must be rejected once the backing session is gone.
	_, err = auth.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestAuthService_LogoutIdempotent(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)
	claims, err := auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, claims.SessionID))
	require.NoError(t, auth.Logout(ctx, claims.SessionID))
	require.NoError(t, auth.Logout(ctx, "never-existed"))
}

func TestAuthService_Refresh(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)

	refreshed, err := auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken, "refresh credential is not rotated")

	claims, err := auth.Validate(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.SubjectID)
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestAuthService_RefreshAfterLogout(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := auth.Login(ctx, "a@x.com", "pw", "")
	require.NoError(t, err)
	claims, err := auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, claims.SessionID))

	_, err = auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestMemoryCredentialValidator_LockedAccount(t *testing.T) {
	validator := NewMemoryCredentialValidator()
	require.NoError(t, validator.AddUser(domain.User{
		ID:     "user-b",
		Email:  "b@x.com",
		Status: domain.UserStatusLocked,
	}, "pw"))

	_, err := validator.ValidateCredentials(context.Background(), "b@x.com", "pw")
	assert.ErrorIs(t, err, serrors.ErrInvalidCredentials)
}
