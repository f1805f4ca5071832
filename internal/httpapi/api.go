// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package httpapi exposes the credential service over HTTP.
//
// Routes:
//
//	POST /api/auth/register  {username, password} -> 201 {id, username}
//	POST /api/auth/login     {username, password} -> 200 {token}
//	GET  /api/user/profile   Authorization: Bearer <token> -> 200 {message, username}
package httpapi

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/observability"
)

// DefaultBodyLimit caps request bodies. Credentials are tiny.
const DefaultBodyLimit = "64K"

// Authenticator is the subset of auth.Service the API calls.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (*auth.PublicUser, error)
	Login(ctx context.Context, username, password string) (string, error)
	ValidateBearerToken(ctx context.Context, token string) (*auth.Claims, error)
}

type options struct {
	metrics     *observability.Metrics
	bodyLimit   string
	corsOrigins []string
}

// Option configures the API server.
type Option func(*options)

// WithMetrics records request counts and latency on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBodyLimit overrides DefaultBodyLimit. Empty is ignored.
func WithBodyLimit(limit string) Option {
	return func(o *options) {
		if limit != "" {
			o.bodyLimit = limit
		}
	}
}

// WithCORSOrigins allows browser clients from origins. CORS is off when
// no origins are given.
func WithCORSOrigins(origins []string) Option {
	return func(o *options) {
		o.corsOrigins = origins
	}
}

// New creates the API server.
func New(svc Authenticator, logger *slog.Logger, opts ...Option) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{bodyLimit: DefaultBodyLimit}
	for _, opt := range opts {
		opt(&o)
	}

	srv := echo.New()
	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.HTTPErrorHandler = errorHandler(logger)

	srv.Use(
		observe(logger, o.metrics),
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			RequestIDHandler: func(c echo.Context, id string) {
				c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
			},
		}),
	)
	if len(o.corsOrigins) > 0 {
		srv.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: o.corsOrigins,
			AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	srv.Use(middleware.BodyLimit(o.bodyLimit))

	handler{svc: svc}.register(srv)
	return srv
}
