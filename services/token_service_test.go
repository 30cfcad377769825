package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/mythologiq/hearthlink-core/errors"
)

func newTestTokenService() *TokenService {
	return NewTokenService([]byte("test-secret"), "hearthlink-test", "hearthlink")
}

func TestTokenService_SignVerifyRoundtrip(t *testing.T) {
	ts := newTestTokenService()

	claims := Claims{
		SubjectID: "user-1",
		Email:     "a@x.com",
		Roles:     []string{"admin"},
		SessionID: "session-1",
		TokenType: TokenTypeAccess,
	}

	token, err := ts.Sign(claims, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.SubjectID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, TokenTypeAccess, got.TokenType)
}

func TestTokenService_VerifyExpired(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Sign(Claims{SubjectID: "user-1", TokenType: TokenTypeAccess}, -time.Minute)
	require.NoError(t, err)

	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, serrors.ErrTokenExpired)
}

func TestTokenService_VerifyWrongSecret(t *testing.T) {
	ts := newTestTokenService()
	other := NewTokenService([]byte("other-secret"), "hearthlink-test", "hearthlink")

	token, err := other.Sign(Claims{SubjectID: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, serrors.ErrTokenInvalid)
}

func TestTokenService_VerifyForeignDeployment(t *testing.T) {
	ts := newTestTokenService()

	// Same secret, different issuer/audience: another deployment's token
	// must be rejected.
	foreignIssuer := NewTokenService([]byte("test-secret"), "other-deployment", "hearthlink")
	token, err := foreignIssuer.Sign(Claims{SubjectID: "user-1"}, time.Hour)
	require.NoError(t, err)
	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, serrors.ErrTokenInvalid)

	foreignAudience := NewTokenService([]byte("test-secret"), "hearthlink-test", "other-audience")
	token, err = foreignAudience.Sign(Claims{SubjectID: "user-1"}, time.Hour)
	require.NoError(t, err)
	_, err = ts.Verify(token)
	assert.ErrorIs(t, err, serrors.ErrTokenInvalid)
}

func TestTokenService_VerifyMalformed(t *testing.T) {
	ts := newTestTokenService()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := ts.Verify(token)
		assert.ErrorIs(t, err, serrors.ErrTokenInvalid)
	}
}

func TestTokenService_TamperedPayload(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.Sign(Claims{SubjectID: "user-1"}, time.Hour)
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = ts.Verify(tampered)
	assert.ErrorIs(t, err, serrors.ErrTokenInvalid)
}
