package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	msgNoToken      = "Unauthorized: No token provided"
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden"
)

// sessionCookie carries the access token for page navigations, which cannot
// set an Authorization header.
const sessionCookie = "studio_session"

// IdentityHandlerFunc is a handler that is given the caller's verified identity.
type IdentityHandlerFunc func(w http.ResponseWriter, r *http.Request, identity users.Identity)

// RequireAuth rejects requests without a valid bearer token and hands the
// verified identity to next. Any failure during verification, including a
// panic inside the session provider, ends the request with a 401.
func (s *Server) RequireAuth(next IdentityHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.metrics.Rejected("missing_token")
			writeJSONError(w, http.StatusUnauthorized, msgNoToken)
			return
		}

		identity, err := s.authenticate(r.Context(), token)
		if err != nil {
			s.metrics.Rejected(rejectionReason(err))
			zerolog.Ctx(r.Context()).Info().Err(err).Msg("bearer token rejected")
			writeJSONError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		next(w, r, identity)
	}
}

// RequireRole forbids identities that do not hold role.
func RequireRole(role users.Role, next IdentityHandlerFunc) IdentityHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, identity users.Identity) {
		if identity.Role != role {
			zerolog.Ctx(r.Context()).Info().
				Str("user", identity.ID).
				Str("role", string(identity.Role)).
				Str("required", string(role)).
				Msg("role mismatch")
			writeJSONError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next(w, r, identity)
	}
}

// authenticate verifies the token with the session provider, validates the
// identity and resolves its role.
func (s *Server) authenticate(ctx context.Context, token string) (users.Identity, error) {
	ctx, span := s.tracer.Start(ctx, "auth.verify")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.GetVerifyTimeout())
	defer cancel()

	start := time.Now()
	identity, err := s.verify(ctx, token)
	if err == nil {
		err = identity.Validate(time.Now())
	}
	s.metrics.Verified(err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return users.Identity{}, err
	}

	role, err := s.resolveRole(ctx, identity)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user", identity.ID).Msg("role lookup failed")
		role = users.RoleNone
	}
	identity.Role = role

	span.SetAttributes(
		attribute.String("user.id", identity.ID),
		attribute.String("user.role", string(identity.Role)),
	)
	return identity, nil
}

// verify calls the session provider and turns a panic into an error.
func (s *Server) verify(ctx context.Context, token string) (identity users.Identity, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("%w: verifier panic: %v", apperrors.ErrSessionLoadFailure, rv)
		}
	}()
	return s.verifier.GetUser(ctx, token)
}

func (s *Server) resolveRole(ctx context.Context, identity users.Identity) (role users.Role, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("resolver panic: %v", rv)
		}
	}()
	return s.resolver.ResolveRole(ctx, identity)
}

// bearerToken extracts the token from an Authorization header. The scheme is
// matched case-insensitively; anything but a Bearer credential yields "".
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestToken reads the bearer token, falling back to the session cookie.
func requestToken(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func rejectionReason(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		return "expired"
	case apperrors.Is(err, apperrors.ErrTokenRevoked):
		return "revoked"
	case apperrors.Is(err, apperrors.ErrUserBlocked):
		return "blocked"
	case apperrors.Is(err, apperrors.ErrSessionLoadFailure):
		return "session_load_failure"
	default:
		return "invalid_token"
	}
}
