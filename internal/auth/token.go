// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"crypto/rand"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration defaults.
const (
	DefaultTokenLifetime = 7 * 24 * time.Hour
	MinSecretLength      = 32
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	// Secret is the HMAC-SHA256 signing key. Must be at least MinSecretLength bytes.
	Secret []byte

	// Issuer and Audience are written into every token and required on validation.
	Issuer   string
	Audience string

	// Lifetime is the validity window. Zero means DefaultTokenLifetime.
	Lifetime time.Duration

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// Claims are the validated contents of a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// Username returns the subject username.
func (c *Claims) Username() string {
	return c.Subject
}

// TokenService issues and validates signed, time-bounded bearer tokens.
// It holds no state beyond its configuration.
type TokenService struct {
	cfg    TokenConfig
	parser *jwt.Parser
	logger *slog.Logger
}

// NewTokenService validates cfg and creates a TokenService.
// A nil logger uses slog.Default().
func NewTokenService(cfg TokenConfig, logger *slog.Logger) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("token audience is required")
	}
	if cfg.Lifetime < 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").With("lifetime", cfg.Lifetime).Errorf("token lifetime cannot be negative")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	)

	return &TokenService{cfg: cfg, parser: parser, logger: logger}, nil
}

// Lifetime returns the configured validity window.
func (s *TokenService) Lifetime() time.Duration {
	return s.cfg.Lifetime
}

// Issue signs a token for the given user, valid from now for the configured lifetime.
func (s *TokenService) Issue(userID int64, username string) (string, error) {
	if userID <= 0 || username == "" {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", userID).
			Errorf("token subject is incomplete")
	}

	now := s.cfg.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").With("operation", "generate token id").Wrap(err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   username,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Lifetime)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(s.cfg.Secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").With("operation", "sign token").Wrap(err)
	}
	return signed, nil
}

// Validate verifies the signature and claims of token.
// Every failure returns an error wrapping ErrUnauthenticated; the cause is
// only logged at debug level.
func (s *TokenService) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, s.reject("empty token", nil)
	}

	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		return nil, s.reject("parse", err)
	}
	if !parsed.Valid {
		return nil, s.reject("invalid token", nil)
	}
	if claims.IssuedAt == nil {
		return nil, s.reject("missing iat", nil)
	}
	if claims.Subject == "" || claims.UserID <= 0 {
		return nil, s.reject("missing subject", nil)
	}
	return claims, nil
}

func (s *TokenService) reject(reason string, cause error) error {
	attrs := []any{"reason", reason}
	if cause != nil {
		attrs = append(attrs, "error", cause.Error())
	}
	s.logger.Debug("bearer token rejected", attrs...)
	return unauthenticated()
}
