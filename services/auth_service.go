package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/cache"
	"github.com/mythologiq/hearthlink-core/domain"
	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/internal/audit"
	"github.com/mythologiq/hearthlink-core/internal/metrics"
)

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthService orchestrates login, validation, refresh and logout over the
// token codec and the session store.
//
// Validity of a presented credential is a dual check: correct
// signature/expiry/issuer/audience AND a live AuthSession for the embedded
// session id. The first half keeps verification local, the second keeps
// server-side revocation immediate.
type AuthService struct {
	tokens     *TokenService
	sessions   cache.SessionStore
	validator  CredentialValidator
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	tokens *TokenService,
	sessions cache.SessionStore,
	validator CredentialValidator,
	accessTTL, refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		tokens:     tokens,
		sessions:   sessions,
		validator:  validator,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Login validates credentials, mints a fresh AuthSession and returns a signed
// access/refresh pair bound to it. Every failure is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, secret, deviceInfo string) (*TokenPair, error) {
	user, err := s.validator.ValidateCredentials(ctx, identifier, secret)
	if err != nil || user == nil {
		log.Ctx(ctx).Warn().Str("identifier", identifier).Msg("login rejected")
		audit.Log("AuthService", "Login", identifier, "", "credential validation failed", false, err)
		metrics.LoginFailureTotal.Inc()
		return nil, serrors.ErrInvalidCredentials
	}

	now := time.Now()
	session := &domain.AuthSession{
		ID:           uuid.NewString(),
		SubjectID:    user.ID,
		Email:        user.Email,
		Roles:        user.Roles,
		DeviceInfo:   deviceInfo,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(s.refreshTTL),
	}
	if err := s.sessions.Put(ctx, session.ID, session, s.refreshTTL); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to store auth session")
		return nil, err
	}

	claims := Claims{
		SubjectID: user.ID,
		Email:     user.Email,
		Roles:     user.Roles,
		SessionID: session.ID,
	}

	claims.TokenType = TokenTypeAccess
	accessToken, err := s.tokens.Sign(claims, s.accessTTL)
	if err != nil {
		return nil, err
	}

	claims.TokenType = TokenTypeRefresh
	refreshToken, err := s.tokens.Sign(claims, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	audit.Log("AuthService", "Login", user.ID, session.ID, "", true, nil)
	metrics.LoginSuccessTotal.Inc()
	metrics.TokensCreatedTotal.Add(2)
	metrics.ActiveAuthSessions.Inc()
	log.Ctx(ctx).Info().Str("subject_id", user.ID).Str("session_id", session.ID).Msg("login succeeded")

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.accessTTL),
	}, nil
}

// Validate checks an access credential and touches its backing AuthSession.
// All failure modes collapse to ErrUnauthorized: the boundary never reveals
// whether a token was malformed, expired or revoked.
func (s *AuthService) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, serrors.ErrUnauthorized
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, serrors.ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil || session == nil || session.Expired(time.Now()) {
		return nil, serrors.ErrUnauthorized
	}

	if err := s.sessions.Touch(ctx, claims.SessionID, s.refreshTTL); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", claims.SessionID).Msg("session touch failed")
	}

	return claims, nil
}

// Refresh mints a new access credential against a live refresh credential.
// The refresh credential itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, serrors.ErrUnauthorized
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, serrors.ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil || session == nil || session.Expired(time.Now()) {
		return nil, serrors.ErrUnauthorized
	}

	access := Claims{
		SubjectID: session.SubjectID,
		Email:     session.Email,
		Roles:     session.Roles,
		SessionID: session.ID,
		TokenType: TokenTypeAccess,
	}
	accessToken, err := s.tokens.Sign(access, s.accessTTL)
	if err != nil {
		return nil, err
	}

	metrics.TokensRefreshedTotal.Inc()
	log.Ctx(ctx).Debug().Str("session_id", session.ID).Msg("access token refreshed")

	return &TokenPair{
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(s.accessTTL),
	}, nil
}

// Logout deletes the AuthSession unconditionally. Idempotent: logging out an
// unknown or already-removed session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	existing, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	if existing != nil {
		metrics.ActiveAuthSessions.Dec()
	}
	audit.Log("AuthService", "Logout", "", sessionID, "", true, nil)
	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("session revoked")
	return nil
}
