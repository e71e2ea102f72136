package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/sessions/remote"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "anon-key"

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("hosted-service-secret"))
	require.NoError(t, err)
	return token
}

func newAuthService(t *testing.T, validToken string, role string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != testAPIKey {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "user-1",
			"email":        "creator@example.com",
			"role":         "authenticated",
			"app_metadata": map[string]any{"role": role},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Validation(t *testing.T) {
	_, err := remote.New("", testAPIKey)
	require.Error(t, err)

	_, err = remote.New("https://example.supabase.co", "")
	require.Error(t, err)
}

func TestClient_GetUser(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, exp)
	srv := newAuthService(t, token, "admin")

	client, err := remote.New(srv.URL+"/", testAPIKey)
	require.NoError(t, err)

	identity, err := client.GetUser(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", identity.ID)
	require.Equal(t, "creator@example.com", identity.Email)
	require.Equal(t, users.RoleAdmin, identity.Role)
	require.True(t, exp.Equal(identity.ExpiresAt))
}

func TestClient_GetUserRejected(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	srv := newAuthService(t, signedToken(t, exp), "user")

	client, err := remote.New(srv.URL, testAPIKey)
	require.NoError(t, err)

	other := signedToken(t, exp.Add(time.Minute))
	_, err = client.GetUser(context.Background(), other)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestClient_GetUserMalformedToken(t *testing.T) {
	client, err := remote.New("http://127.0.0.1:1", testAPIKey)
	require.NoError(t, err)

	_, err = client.GetUser(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrMissingToken)

	_, err = client.GetUser(context.Background(), "abc123")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = client.GetUser(context.Background(), signedToken(t, time.Time{}))
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestClient_GetUserServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client, err := remote.New(srv.URL, testAPIKey)
	require.NoError(t, err)

	_, err = client.GetUser(context.Background(), signedToken(t, time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, apperrors.ErrSessionLoadFailure)
	require.True(t, apperrors.IsUnauthenticated(err))
}

func TestClient_GetUserUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := remote.New(url, testAPIKey, remote.WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.GetUser(context.Background(), signedToken(t, time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, apperrors.ErrSessionLoadFailure)
}
