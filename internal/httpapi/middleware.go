// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/authkeep/authkeep/internal/observability"
)

const tracerName = "github.com/authkeep/authkeep/internal/httpapi"

// observe wraps each request in a server span, then logs and counts it once
// the response status is known. Errors are rendered here so the status
// recorded is the one sent.
func observe(logger *slog.Logger, metrics *observability.Metrics) echo.MiddlewareFunc {
	tracer := otel.Tracer(tracerName)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			ctx, span := tracer.Start(req.Context(), req.Method+" "+routeOf(c),
				trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := routeOf(c)
			status := c.Response().Status
			latency := time.Since(start)

			span.SetName(req.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
				metrics.RequestDuration.WithLabelValues(route, req.Method).Observe(latency.Seconds())
			}

			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			// The request context now also carries the request ID.
			logger.LogAttrs(c.Request().Context(), level, "request handled",
				slog.String("method", req.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("latency", latency),
			)
			return nil
		}
	}
}

// routeOf returns the matched route pattern, keeping metric label
// cardinality bounded for unmatched paths.
func routeOf(c echo.Context) string {
	if path := c.Path(); path != "" {
		return path
	}
	return "unmatched"
}
