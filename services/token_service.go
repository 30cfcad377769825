package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	serrors "github.com/mythologiq/hearthlink-core/errors"
)

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the signed claim set for both access and refresh credentials.
// SessionID binds the stateless token to its revocable server-side record.
type Claims struct {
	SubjectID string   `json:"sub_id"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"sid"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies compact tamper-evident credentials.
// It is stateless: revocation is the auth service's concern.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenService creates a TokenService. Issuer and audience are embedded in
// every token and enforced on verify, so tokens minted by another deployment
// are rejected even under a shared secret.
func NewTokenService(secret []byte, issuer, audience string) *TokenService {
	return &TokenService{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

// Sign mints a signed credential for the given subject with the given ttl.
func (s *TokenService) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		Subject:   claims.SubjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a credential. Expiry surfaces as
// serrors.ErrTokenExpired; every other defect (bad signature, malformed
// structure, wrong issuer or audience) surfaces as serrors.ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, serrors.ErrTokenExpired
		}
		return nil, serrors.ErrTokenInvalid
	}
	return claims, nil
}
