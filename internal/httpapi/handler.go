// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

const claimsKey = "authkeep.claims"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type handler struct {
	svc Authenticator
}

func (h handler) register(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/auth/register", h.registerUser)
	api.POST("/auth/login", h.login)
	api.GET("/user/profile", h.profile, requireBearer(h.svc))
}

func (h handler) registerUser(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return malformedBody()
	}

	user, err := h.svc.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/api/users/%d", user.ID))
	return c.JSON(http.StatusCreated, user)
}

func (h handler) login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return malformedBody()
	}

	token, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (h handler) profile(c echo.Context) error {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return unauthenticated()
	}
	return c.JSON(http.StatusOK, profileResponse{
		Message:  fmt.Sprintf("Welcome, %s! This is your secure profile data.", claims.Username()),
		Username: claims.Username(),
	})
}

// requireBearer validates the Authorization header and stores the claims
// on the request context for the next handler.
func requireBearer(svc Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return unauthenticated()
			}

			claims, err := svc.ValidateBearerToken(c.Request().Context(), token)
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
				return err
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by the bearer middleware.
func ClaimsFrom(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func malformedBody() error {
	return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
}

func unauthenticated() error {
	return oops.Code(auth.CodeUnauthenticated).Wrap(auth.ErrUnauthenticated)
}
