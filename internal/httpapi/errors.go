// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/pkg/errutil"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// errorHandler writes err as a JSON body. Bodies carry a fixed message per
// outcome and never the underlying cause.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := statusFor(err)
		if status >= http.StatusInternalServerError {
			errutil.LogError(c.Request().Context(), logger, "request failed", err, "route", c.Path())
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.DebugContext(c.Request().Context(), "failed to write error response", "error", writeErr)
		}
	}
}

func statusFor(err error) (int, errorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || he.Code >= http.StatusInternalServerError {
			msg = http.StatusText(he.Code)
		}
		return he.Code, errorResponse{Error: msg}
	}

	switch auth.Kind(err) {
	case auth.KindValidation:
		body := errorResponse{Error: "invalid request"}
		if oopsErr, ok := oops.AsOops(err); ok {
			if field, ok := oopsErr.Context()["field"].(string); ok {
				body.Error = field + " is required"
				if _, broken := oopsErr.Context()["rule"]; broken {
					body.Error = field + " is invalid"
				}
				body.Field = field
			}
		}
		return http.StatusBadRequest, body
	case auth.KindConflict:
		return http.StatusConflict, errorResponse{Error: "username already exists"}
	case auth.KindUnauthorized:
		if errors.Is(err, auth.ErrUnauthenticated) {
			return http.StatusUnauthorized, errorResponse{Error: "unauthenticated"}
		}
		return http.StatusUnauthorized, errorResponse{Error: "invalid username or password"}
	case auth.KindStorageUnavailable:
		return http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}
