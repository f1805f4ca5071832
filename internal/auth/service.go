// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Service registers users, checks credentials and validates bearer tokens.
type Service struct {
	users   UserRepository
	hasher  PasswordHasher
	tokens  *TokenService
	logger  *slog.Logger
	metrics *Metrics

	dummyOnce sync.Once
	dummyHash []byte
	dummyErr  error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service. All three collaborators are required.
func NewService(users UserRepository, hasher PasswordHasher, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token service is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a new user and returns its public view.
func (s *Service) Register(ctx context.Context, username, password string) (*PublicUser, error) {
	user, err := s.register(ctx, username, password)
	if err != nil {
		s.metrics.registration(Kind(err).String())
		return nil, err
	}
	s.metrics.registration("success")
	s.logger.InfoContext(ctx, "user registered", "user", user)
	return user.Public(), nil
}

func (s *Service) register(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, username)
	if err != nil {
		return nil, oops.With("operation", "check username").Wrap(err)
	}
	// Fast path only; the insert below is what enforces uniqueness.
	if exists {
		return nil, Duplicate(username)
	}

	hash, err := s.hash(ctx, password)
	if err != nil {
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	user, err := s.users.Insert(ctx, username, hash)
	if err != nil {
		return nil, oops.With("operation", "insert user").Wrap(err)
	}
	return user, nil
}

// Login checks credentials and returns a signed bearer token.
// Unknown usernames and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	token, err := s.login(ctx, username, password)
	if err != nil {
		s.metrics.login(Kind(err).String())
		return "", err
	}
	s.metrics.login("success")
	return token, nil
}

func (s *Service) login(ctx context.Context, username, password string) (string, error) {
	// No stored record can carry such a name.
	if !storableUsername(username) {
		s.verifyDummy(ctx, password)
		return "", unauthorized()
	}

	user, lookupErr := s.users.FindByUsername(ctx, username)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.With("operation", "find user").Wrap(lookupErr)
		}
		// Run a verification anyway so response time does not reveal
		// whether the username exists.
		s.verifyDummy(ctx, password)
		return "", unauthorized()
	}

	result, err := s.verify(ctx, user.PasswordHash, password)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", oops.With("operation", "verify password").Wrap(err)
		}
		s.logger.WarnContext(ctx, "stored password hash unreadable",
			"user", user,
			"error", err.Error())
		return "", unauthorized()
	}
	if !result.OK() {
		return "", unauthorized()
	}
	if result == VerifyNeedsRehash {
		s.metrics.rehashNeeded()
		s.logger.InfoContext(ctx, "stored password hash is below current policy", "user", user)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", oops.With("operation", "issue token").Wrap(err)
	}
	return token, nil
}

// ValidateBearerToken returns the claims of a valid token. Any failure
// returns an error wrapping ErrUnauthenticated.
func (s *Service) ValidateBearerToken(_ context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.metrics.tokenValidation("invalid")
		return nil, err
	}
	s.metrics.tokenValidation("valid")
	return claims, nil
}

func (s *Service) hash(ctx context.Context, password string) ([]byte, error) {
	if ch, ok := s.hasher.(ContextHasher); ok {
		return ch.HashContext(ctx, password)
	}
	return s.hasher.Hash(password)
}

func (s *Service) verify(ctx context.Context, encoded []byte, password string) (VerifyResult, error) {
	if ch, ok := s.hasher.(ContextHasher); ok {
		return ch.VerifyContext(ctx, encoded, password)
	}
	return s.hasher.Verify(encoded, password)
}

// verifyDummy verifies password against a hash of a random secret. The hash
// is computed once with the live hasher so it carries the current cost.
func (s *Service) verifyDummy(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			s.dummyErr = err
			return
		}
		s.dummyHash, s.dummyErr = s.hasher.Hash(base64.RawStdEncoding.EncodeToString(secret))
	})
	if s.dummyErr != nil {
		s.logger.WarnContext(ctx, "timing equalization hash unavailable", "error", s.dummyErr.Error())
		return
	}
	_, _ = s.verify(ctx, s.dummyHash, password) //nolint:errcheck // only the elapsed time matters
}
