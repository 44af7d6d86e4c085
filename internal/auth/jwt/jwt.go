// Package jwt issues and validates the HS256 access tokens used by the API.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dirmodels "vigia/internal/directory/models"
	dErrors "vigia/pkg/domain-errors"
	middlewareauth "vigia/pkg/platform/middleware/auth"
)

// Claims are the JWT claims carried by an access token. The profile
// reference matching the role travels in the token so handlers never need a
// directory lookup to scope a request.
type Claims struct {
	Role       string `json:"role"`
	ResidentID string `json:"resident_id,omitempty"`
	GuardID    string `json:"guard_id,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates access tokens.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	timeFunc   func() time.Time
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithTimeFunc overrides the clock used to check token lifetimes. Tests that
// sign tokens against a fixed clock validate them against the same clock.
func WithTimeFunc(f func() time.Time) Option {
	return func(s *Service) {
		s.timeFunc = f
	}
}

func NewService(signingKey, issuer, audience string, tokenTTL time.Duration, opts ...Option) *Service {
	svc := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) parserOptions() []jwt.ParserOption {
	if s.timeFunc == nil {
		return nil
	}
	return []jwt.ParserOption{jwt.WithTimeFunc(s.timeFunc)}
}

// TokenTTL returns the configured token lifetime. Logout uses it to bound
// the revocation entry.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// GenerateToken issues a signed access token for the account.
func (s *Service) GenerateToken(user *dirmodels.User, now time.Time) (string, error) {
	claims := Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.UUID(user.ID).String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	}
	if user.ResidentID != nil {
		claims.ResidentID = uuid.UUID(*user.ResidentID).String()
	}
	if user.GuardID != nil {
		claims.GuardID = uuid.UUID(*user.GuardID).String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning the claims the
// authentication middleware consumes.
func (s *Service) ValidateToken(tokenString string) (*middlewareauth.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, s.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return &middlewareauth.JWTClaims{
		UserID:     claims.Subject,
		Role:       claims.Role,
		ResidentID: claims.ResidentID,
		GuardID:    claims.GuardID,
		JTI:        claims.ID,
	}, nil
}

// RemainingTTL returns how long a token is still valid, used to size its
// revocation entry. Returns zero for already-expired tokens.
func (s *Service) RemainingTTL(tokenString string, now time.Time) time.Duration {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, s.parserOptions()...)
	if err != nil || !parsed.Valid {
		return 0
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
