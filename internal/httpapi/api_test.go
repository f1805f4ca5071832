// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/auth/memory"
	"github.com/authkeep/authkeep/internal/httpapi"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T, opts ...auth.ServiceOption) *auth.Service {
	t.Helper()
	policy := auth.DefaultHashPolicy()
	policy.Argon2MemoryKiB = 1024
	policy.Argon2Threads = 1
	hasher, err := auth.NewHasher(policy)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(testSecret),
		Issuer:   "authkeep",
		Audience: "authkeep",
	}, nil)
	require.NoError(t, err)

	svc, err := auth.NewService(memory.NewStore(), auth.NewPooledHasher(hasher, 2), tokens, opts...)
	require.NoError(t, err)
	return svc
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bearer(token string) http.Header {
	return http.Header{echo.HeaderAuthorization: []string{"Bearer " + token}}
}

func TestAPI_RegisterLoginProfile(t *testing.T) {
	api := httpapi.New(newService(t), nil)

	rec := do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "alice", created["username"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, "/api/users/1", rec.Header().Get(echo.HeaderLocation))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(t, api, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"Secret123!"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	assert.Len(t, strings.Split(token, "."), 3)

	rec = do(t, api, http.MethodGet, "/api/user/profile", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode(t, rec)
	assert.Equal(t, "Welcome, alice! This is your secure profile data.", profile["message"])
	assert.Equal(t, "alice", profile["username"])
}

func TestAPI_Register(t *testing.T) {
	api := httpapi.New(newService(t), nil)
	require.Equal(t, http.StatusCreated,
		do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil).Code)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"duplicate", `{"username":"alice","password":"Other123!"}`, http.StatusConflict, "username already exists"},
		{"blank username", `{"username":"  ","password":"Secret123!"}`, http.StatusBadRequest, "username is required"},
		{"missing password", `{"username":"bob"}`, http.StatusBadRequest, "password is required"},
		{"malformed json", `{"username":`, http.StatusBadRequest, "malformed request body"},
		{"nul in username", `{"username":"a\u0000b","password":"Secret123!"}`, http.StatusBadRequest, "username is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, api, http.MethodPost, "/api/auth/register", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode(t, rec)["error"])
		})
	}
}

func TestAPI_LoginFailuresAreIdentical(t *testing.T) {
	api := httpapi.New(newService(t), nil)
	require.Equal(t, http.StatusCreated,
		do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil).Code)

	unknown := do(t, api, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"Secret123!"}`, nil)
	wrong := do(t, api, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"nope"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())

	unstorable := do(t, api, http.MethodPost, "/api/auth/login", `{"username":"a\u0000b","password":"Secret123!"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, unstorable.Code)
	assert.Equal(t, wrong.Body.String(), unstorable.Body.String())
}

func TestAPI_ProfileRejectsBadTokens(t *testing.T) {
	api := httpapi.New(newService(t), nil)

	tests := []struct {
		name       string
		header     http.Header
		wantHeader string
	}{
		{"no header", nil, "Bearer"},
		{"wrong scheme", http.Header{echo.HeaderAuthorization: []string{"Basic YWxpY2U6eA=="}}, "Bearer"},
		{"empty bearer", http.Header{echo.HeaderAuthorization: []string{"Bearer "}}, "Bearer"},
		{"garbage token", bearer("not.a.jwt"), `Bearer error="invalid_token"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, api, http.MethodGet, "/api/user/profile", "", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantHeader, rec.Header().Get(echo.HeaderWWWAuthenticate))
			assert.Equal(t, "unauthenticated", decode(t, rec)["error"])
		})
	}
}

// stubAuthenticator returns canned errors.
type stubAuthenticator struct {
	err error
}

func (s stubAuthenticator) Register(context.Context, string, string) (*auth.PublicUser, error) {
	return nil, s.err
}

func (s stubAuthenticator) Login(context.Context, string, string) (string, error) {
	return "", s.err
}

func (s stubAuthenticator) ValidateBearerToken(context.Context, string) (*auth.Claims, error) {
	return nil, s.err
}

func TestAPI_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"storage unavailable", auth.StorageUnavailable("insert", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "service unavailable"},
		{"internal", errors.New("pq: secret internal detail"), http.StatusInternalServerError, "internal server error"},
		{"conflict", auth.Duplicate("alice"), http.StatusConflict, "username already exists"},
		{"unauthorized", auth.ErrUnauthorized, http.StatusUnauthorized, "invalid username or password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := httpapi.New(stubAuthenticator{err: tt.err}, nil)

			rec := do(t, api, http.MethodPost, "/api/auth/login", `{"username":"a","password":"b"}`, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode(t, rec)["error"])
			assert.NotContains(t, rec.Body.String(), "refused")
			assert.NotContains(t, rec.Body.String(), "secret internal detail")
		})
	}
}

func TestAPI_BodyLimit(t *testing.T) {
	api := httpapi.New(newService(t), nil, httpapi.WithBodyLimit("1K"))

	body := `{"username":"alice","password":"` + strings.Repeat("x", 2048) + `"}`
	rec := do(t, api, http.MethodPost, "/api/auth/register", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPI_UnknownRoute(t *testing.T) {
	api := httpapi.New(newService(t), nil)

	rec := do(t, api, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CORS(t *testing.T) {
	api := httpapi.New(newService(t), nil, httpapi.WithCORSOrigins([]string{"http://localhost:4200"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:4200")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestAPI_Metrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	api := httpapi.New(newService(t), nil, httpapi.WithMetrics(metrics))

	do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil)
	do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil)

	assert.InDelta(t, 1, testutil.ToFloat64(
		metrics.RequestsTotal.WithLabelValues("/api/auth/register", http.MethodPost, "201")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		metrics.RequestsTotal.WithLabelValues("/api/auth/register", http.MethodPost, "409")), 0)
}

func TestAPI_RecoversFromPanics(t *testing.T) {
	api := httpapi.New(panickingAuthenticator{}, nil)

	rec := do(t, api, http.MethodPost, "/api/auth/login", `{"username":"a","password":"b"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
}

type panickingAuthenticator struct{ stubAuthenticator }

func (panickingAuthenticator) Login(context.Context, string, string) (string, error) {
	panic("boom")
}

func TestAPI_ExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	issuer, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(testSecret),
		Issuer:   "authkeep",
		Audience: "authkeep",
		Lifetime: time.Hour,
		Now:      func() time.Time { return issuedAt },
	}, nil)
	require.NoError(t, err)
	token, err := issuer.Issue(1, "alice")
	require.NoError(t, err)

	api := httpapi.New(newService(t), nil)
	rec := do(t, api, http.MethodGet, "/api/user/profile", "", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ServiceLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("authkeep", "test", "json", nil, &buf)
	api := httpapi.New(newService(t, auth.WithLogger(logger)), logger)

	rec := do(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"Secret123!"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	requestID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, requestID)

	var found bool
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry["msg"] == "user registered" {
			found = true
			assert.Equal(t, requestID, entry["request_id"])
		}
	}
	assert.True(t, found, "no registration log line in %s", buf.String())
	assert.NotContains(t, buf.String(), "Secret123!")
}
