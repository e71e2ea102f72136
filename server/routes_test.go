package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-studio-gateway/internal/metrics"
	"github.com/jrsteele09/go-studio-gateway/server"
	"github.com/jrsteele09/go-studio-gateway/sessions/local"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Adm1nPassword"
	userEmail     = "creator@example.com"
	userPassword  = "Cr3atorPassword"
)

type studio struct {
	srv      *server.Server
	repo     *users.InMemoryUserRepo
	provider *local.Provider
	registry *prometheus.Registry
}

func newStudio(t *testing.T, opts ...server.Option) *studio {
	t.Helper()

	repo := users.NewInMemoryUserRepo()
	for email, pw := range map[string]string{adminEmail: adminPassword, userEmail: userPassword} {
		hash, err := users.HashPassword(pw)
		require.NoError(t, err)
		role := users.RoleUser
		if email == adminEmail {
			role = users.RoleAdmin
		}
		require.NoError(t, repo.Upsert(&users.User{Email: email, PasswordHash: hash, Role: role}))
	}

	provider, err := local.New(repo, local.Options{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer: "studio-test",
	})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	opts = append([]server.Option{
		server.WithAccounts(provider),
		server.WithUserRepo(repo),
		server.WithMetrics(metrics.New(metrics.WithRegistry(registry)), registry),
	}, opts...)

	return &studio{srv: newServer(t, provider, opts...), repo: repo, provider: provider, registry: registry}
}

func (s *studio) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin,
		strings.NewReader(`{"email":"`+email+`","password":"`+password+`"}`)), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string         `json:"access_token"`
		TokenType   string         `json:"token_type"`
		User        users.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bearer", body.TokenType)
	require.Equal(t, email, body.User.Email)
	return body.AccessToken
}

func (s *studio) do(req *http.Request, contentType string) *httptest.ResponseRecorder {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

func authed(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func withCookie(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: "studio_session", Value: token})
	return req
}

func TestRoutes_Me(t *testing.T) {
	s := newStudio(t)
	token := s.login(t, userEmail, userPassword)

	rec := s.do(authed(http.MethodGet, server.RouteAPIMe, token), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body struct {
		User users.Identity `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, userEmail, body.User.Email)
	require.Equal(t, users.RoleUser, body.User.Role)

	rec = s.do(httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Unauthorized: No token provided"}`, rec.Body.String())
}

func TestRoutes_AdminUsers(t *testing.T) {
	s := newStudio(t)

	rec := s.do(authed(http.MethodGet, server.RouteAPIAdminUsers, s.login(t, userEmail, userPassword)), "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(authed(http.MethodGet, server.RouteAPIAdminUsers+"?limit=10", s.login(t, adminEmail, adminPassword)), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "$2a$")

	var body struct {
		Users []struct {
			Email string     `json:"email"`
			Role  users.Role `json:"role"`
		} `json:"users"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	require.Equal(t, 10, body.Limit)
}

func TestRoutes_Login(t *testing.T) {
	s := newStudio(t)

	rec := s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin,
		strings.NewReader(`{"email":"`+userEmail+`","password":"nope"}`)), "application/json")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader(`{`)), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin,
		strings.NewReader("email="+userEmail+"&password="+userPassword)), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "studio_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	require.NoError(t, s.repo.SetBlocked(userEmail, true))
	rec = s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogin,
		strings.NewReader(`{"email":"`+userEmail+`","password":"`+userPassword+`"}`)), "application/json")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoutes_LogoutAndRefresh(t *testing.T) {
	s := newStudio(t)
	token := s.login(t, userEmail, userPassword)

	rec := s.do(authed(http.MethodPost, server.RouteAuthRefresh, token), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	require.NotEqual(t, token, refreshed.AccessToken)

	rec = s.do(authed(http.MethodGet, server.RouteAPIMe, token), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(authed(http.MethodPost, server.RouteAuthLogout, refreshed.AccessToken), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(authed(http.MethodGet, server.RouteAPIMe, refreshed.AccessToken), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodPost, server.RouteAuthLogout, nil), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_PageGuard(t *testing.T) {
	s := newStudio(t)
	userToken := s.login(t, userEmail, userPassword)
	adminToken := s.login(t, adminEmail, adminPassword)

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		location string
	}{
		{"app without session", httptest.NewRequest(http.MethodGet, "/app", nil), http.StatusSeeOther, "/auth"},
		{"app nested without session", httptest.NewRequest(http.MethodGet, "/app/schedule", nil), http.StatusSeeOther, "/auth"},
		{"app with bad cookie", withCookie("/app", "abc123"), http.StatusSeeOther, "/auth"},
		{"app with user", withCookie("/app", userToken), http.StatusOK, ""},
		{"admin without session", httptest.NewRequest(http.MethodGet, "/admin", nil), http.StatusSeeOther, "/"},
		{"admin with user", withCookie("/admin", userToken), http.StatusSeeOther, "/"},
		{"admin with user header", authed(http.MethodGet, "/admin/users", userToken), http.StatusSeeOther, "/"},
		{"admin with admin", withCookie("/admin", adminToken), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.req, "")
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusOK {
				require.Contains(t, rec.Body.String(), `<div id="root"`)
				require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
			}
		})
	}
}

func TestRoutes_PublicShell(t *testing.T) {
	s := newStudio(t)
	for _, path := range []string{"/", "/auth"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, path, nil), "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), "Content Studio")
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/nope", nil), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_Cors(t *testing.T) {
	s := newStudio(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAPIMe, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := s.do(req, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodOptions, server.RouteAPIMe, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = s.do(req, "")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRoutes_Health(t *testing.T) {
	s := newStudio(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s = newStudio(t, server.WithHealthCheck("postgres", pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))
	rec = s.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil), "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"degraded","checks":{"postgres":"unavailable"}}`, rec.Body.String())
}

func TestRoutes_Metrics(t *testing.T) {
	s := newStudio(t)
	s.do(httptest.NewRequest(http.MethodGet, server.RouteAPIMe, nil), "")
	s.do(httptest.NewRequest(http.MethodGet, "/app", nil), "")

	rec := s.do(httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `studio_auth_rejections_total{reason="missing_token"} 1`)
	require.Contains(t, body, `studio_gate_decisions_total{kind="redirect"} 1`)
	require.Contains(t, body, `studio_http_requests_total{method="GET",route="GET /api/me",status="401"} 1`)
}

func TestRoutes_RecoversHandlerPanic(t *testing.T) {
	s := newStudio(t)
	s.srv.RegisterRouteHandler("GET /boom", server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, s.srv.APIMiddleware()...))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/boom", nil), "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}
