// Package oidc verifies bearer tokens issued by an OpenID Connect provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
)

// Verifier checks ID tokens against the issuer's published keys.
type Verifier struct {
	verifier  *gooidc.IDTokenVerifier
	roleClaim string
}

var _ sessions.Verifier = (*Verifier)(nil)

// New discovers the issuer's configuration and key set.
func New(ctx context.Context, issuer, clientID, roleClaim string) (*Verifier, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("[oidc.New] issuer and client ID are required")
	}
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[oidc.New] discover %s: %w", issuer, err)
	}
	return &Verifier{
		verifier:  provider.Verifier(&gooidc.Config{ClientID: clientID}),
		roleClaim: roleClaim,
	}, nil
}

// NewWithKeySet builds a Verifier from a known key set, skipping discovery.
func NewWithKeySet(issuer, clientID, roleClaim string, keySet gooidc.KeySet, cfg *gooidc.Config) *Verifier {
	if cfg == nil {
		cfg = &gooidc.Config{}
	}
	cfg.ClientID = clientID
	return &Verifier{
		verifier:  gooidc.NewVerifier(issuer, keySet, cfg),
		roleClaim: roleClaim,
	}
}

func (v *Verifier) GetUser(ctx context.Context, token string) (users.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return users.Identity{}, apperrors.ErrMissingToken
	}

	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		var expired *gooidc.TokenExpiredError
		if errors.As(err, &expired) {
			return users.Identity{}, apperrors.ErrTokenExpired
		}
		return users.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return users.Identity{}, fmt.Errorf("%w: decode claims: %v", apperrors.ErrInvalidToken, err)
	}
	email, _ := claims["email"].(string)

	return users.Identity{
		ID:        idToken.Subject,
		Email:     email,
		Role:      sessions.RoleFromClaims(claims, v.roleClaim),
		ExpiresAt: idToken.Expiry,
	}, nil
}
