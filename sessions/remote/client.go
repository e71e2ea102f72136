// Package remote verifies bearer tokens against a hosted auth service that
// exposes a Supabase-style `GET /auth/v1/user` endpoint.
package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const userPath = "/auth/v1/user"

// maxBodySize bounds how much of a user payload is read.
const maxBodySize = 1 << 20

// Client calls the hosted auth service on behalf of the token holder.
type Client struct {
	baseURL   string
	apiKey    string
	roleClaim string
	base      http.RoundTripper
	timeout   time.Duration
}

var _ sessions.Verifier = (*Client)(nil)

type Option func(*Client)

// WithTransport sets the transport used beneath the bearer-token transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTimeout bounds each call to the auth service.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRoleClaim names the app_metadata attribute holding the studio role.
func WithRoleClaim(claim string) Option {
	return func(c *Client) {
		c.roleClaim = claim
	}
}

func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("[remote.New] base URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("[remote.New] API key is required")
	}

	c := &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		roleClaim: "role",
		base:      http.DefaultTransport,
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// userResponse is the subset of the auth service's user payload the gateway reads.
type userResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	AppMetadata map[string]any `json:"app_metadata"`
}

// GetUser asks the auth service who owns the token. Rejections by the service
// map to ErrInvalidToken; transport and decoding problems map to
// ErrSessionLoadFailure.
func (c *Client) GetUser(ctx context.Context, token string) (users.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return users.Identity{}, apperrors.ErrMissingToken
	}

	// The service does not echo the expiry, so read it from the token itself.
	// The signature is checked by the service below.
	expiresAt, err := unverifiedExpiry(token)
	if err != nil {
		return users.Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+userPath, nil)
	if err != nil {
		return users.Identity{}, errors.Wrap(apperrors.ErrSessionLoadFailure, err.Error())
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient(token).Do(req)
	if err != nil {
		return users.Identity{}, errors.Wrapf(apperrors.ErrSessionLoadFailure, "GET %s: %v", userPath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return users.Identity{}, apperrors.ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return users.Identity{}, errors.Wrapf(apperrors.ErrSessionLoadFailure, "GET %s: status %d", userPath, resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&user); err != nil {
		return users.Identity{}, errors.Wrapf(apperrors.ErrSessionLoadFailure, "decode user: %v", err)
	}
	if user.ID == "" {
		return users.Identity{}, errors.Wrap(apperrors.ErrInvalidToken, "user payload has no id")
	}

	return users.Identity{
		ID:        user.ID,
		Email:     user.Email,
		Role:      sessions.RoleFromClaims(map[string]any{"app_metadata": user.AppMetadata}, c.roleClaim),
		ExpiresAt: expiresAt,
	}, nil
}

func (c *Client) httpClient(token string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.base,
		},
		Timeout: c.timeout,
	}
}

func unverifiedExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.Wrap(apperrors.ErrInvalidToken, "token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
