// Package service handles login and logout for directory accounts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vigia/internal/auth/device"
	"vigia/internal/auth/jwt"
	dirmodels "vigia/internal/directory/models"
	dErrors "vigia/pkg/domain-errors"
	audit "vigia/pkg/platform/audit"
	"vigia/pkg/platform/sentinel"
	"vigia/pkg/requestcontext"
)

// UserStore resolves login accounts.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*dirmodels.User, error)
}

// TokenRevoker records logged-out tokens until they expire on their own.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service authenticates accounts and manages token revocation.
type Service struct {
	users  UserStore
	tokens *jwt.Service
	trl    TokenRevoker

	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// New constructs a Service.
func New(users UserStore, tokens *jwt.Service, trl TokenRevoker, opts ...Option) *Service {
	s := &Service{users: users, tokens: tokens, trl: trl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult is a successful authentication.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	User      *dirmodels.User
}

// Login verifies credentials and issues an access token. Unknown usernames
// and wrong passwords produce the same error so the response does not leak
// which accounts exist.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	now := requestcontext.Now(ctx)
	deviceLabel := device.ParseUserAgent(requestcontext.UserAgent(ctx))

	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Burn comparable time so username probing cannot measure the
			// difference between unknown user and wrong password.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(password))
			return nil, s.failLogin(ctx, username, deviceLabel, "unknown_username")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, s.failLogin(ctx, username, deviceLabel, "invalid_password")
	}

	token, err := s.tokens.GenerateToken(user, now)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(audit.EventLoginSucceeded), audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
		Device:  deviceLabel,
	})
	return &LoginResult{
		Token:     token,
		ExpiresIn: s.tokens.TokenTTL(),
		User:      user,
	}, nil
}

func (s *Service) failLogin(ctx context.Context, username, deviceLabel, reason string) error {
	s.logAudit(ctx, string(audit.EventLoginFailed), audit.Event{
		Subject: username,
		Reason:  reason,
		Device:  deviceLabel,
	})
	return dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")
}

// Logout revokes the presented token for the remainder of its lifetime. An
// already-expired token is a no-op success.
func (s *Service) Logout(ctx context.Context, rawToken, jti string) error {
	now := requestcontext.Now(ctx)
	remaining := s.tokens.RemainingTTL(rawToken, now)
	if remaining <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, jti, remaining); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to revoke token")
	}

	s.logAudit(ctx, string(audit.EventTokenRevoked), audit.Event{
		UserID: requestcontext.UserID(ctx),
	})
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, event audit.Event) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"event", action,
			"log_type", "audit",
			"subject", event.Subject,
			"device", event.Device,
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	event.Action = action
	event.RequestID = requestID
	_ = s.auditPublisher.Emit(ctx, event)
}
