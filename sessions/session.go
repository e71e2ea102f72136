package sessions

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-studio-gateway/users"
)

// Session binds a bearer token to the identity it was issued for.
// Sessions are owned by the provider that issued them; everything else holds
// a read-only copy.
type Session struct {
	Token    string         `json:"access_token"`
	Identity users.Identity `json:"user"`
}

// Verifier resolves a bearer token to a verified identity. It is the server
// side of the session provider contract.
type Verifier interface {
	GetUser(ctx context.Context, token string) (users.Identity, error)
}

// Source exposes the current session. A nil session with a nil error means
// there is no session.
type Source interface {
	GetSession(ctx context.Context) (*Session, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (users.Identity, error)

func (f VerifierFunc) GetUser(ctx context.Context, token string) (users.Identity, error) {
	return f(ctx, token)
}

// TokenSource is a Source for a single bearer token, such as the one presented
// by a browser when it opens the guard channel.
type TokenSource struct {
	token    string
	verifier Verifier
}

func NewTokenSource(token string, verifier Verifier) *TokenSource {
	return &TokenSource{token: strings.TrimSpace(token), verifier: verifier}
}

func (s *TokenSource) GetSession(ctx context.Context) (*Session, error) {
	if s.token == "" {
		return nil, nil
	}
	identity, err := s.verifier.GetUser(ctx, s.token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: s.token, Identity: identity}, nil
}

// RoleFromClaims reads a role label from decoded token claims. The claim is
// looked up at the top level first and then under app_metadata, where hosted
// auth services keep server-assigned attributes. A claim holding a list of
// labels yields the most privileged known one. Unknown labels yield RoleNone.
func RoleFromClaims(claims map[string]any, claim string) users.Role {
	if claim == "" {
		return users.RoleNone
	}
	if role := roleFromValue(claims[claim]); role != users.RoleNone {
		return role
	}
	if meta, ok := claims["app_metadata"].(map[string]any); ok {
		return roleFromValue(meta[claim])
	}
	return users.RoleNone
}

func roleFromValue(value any) users.Role {
	switch v := value.(type) {
	case string:
		role, _ := users.ParseRole(v)
		return role
	case []any:
		best := users.RoleNone
		for _, item := range v {
			label, ok := item.(string)
			if !ok {
				continue
			}
			role, _ := users.ParseRole(label)
			if role == users.RoleAdmin {
				return role
			}
			if role == users.RoleUser {
				best = role
			}
		}
		return best
	}
	return users.RoleNone
}
