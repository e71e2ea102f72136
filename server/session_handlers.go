package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog"
)

const maxLoginBody = 1 << 16

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	ExpiresAt   int64          `json:"expires_at"`
	User        users.Identity `json:"user"`
}

// LoginHandler exchanges an email and password for a session. It accepts a
// JSON body or a form post.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			req.Email = r.PostFormValue("email")
			req.Password = r.PostFormValue("password")
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		session, err := s.accounts.Login(r.Context(), req.Email, req.Password)
		switch {
		case apperrors.Is(err, apperrors.ErrUserBlocked):
			writeJSONError(w, http.StatusForbidden, "Account is blocked")
			return
		case apperrors.Is(err, apperrors.ErrInvalidCredentials):
			writeJSONError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		case err != nil:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("login failed")
			writeJSONError(w, http.StatusInternalServerError, "Login failed")
			return
		}

		zerolog.Ctx(r.Context()).Info().Str("user", session.Identity.ID).Msg("login")
		s.writeSession(w, r, session)
	}
}

// LogoutHandler ends the caller's session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, msgNoToken)
			return
		}
		if err := s.accounts.Logout(r.Context(), token); err != nil && !apperrors.IsUnauthenticated(err) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("logout failed")
			writeJSONError(w, http.StatusInternalServerError, "Logout failed")
			return
		}
		clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RefreshHandler swaps a still-valid token for a new one.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, msgNoToken)
			return
		}
		session, err := s.accounts.Refresh(r.Context(), token)
		if err != nil {
			s.metrics.Rejected(rejectionReason(err))
			writeJSONError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		s.writeSession(w, r, session)
	}
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	expiresIn := time.Until(session.Identity.ExpiresAt)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(expiresIn.Seconds()),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: session.Token,
		TokenType:   "bearer",
		ExpiresIn:   int64(expiresIn.Seconds()),
		ExpiresAt:   session.Identity.ExpiresAt.Unix(),
		User:        session.Identity,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// isSecure reports whether the request arrived over TLS, directly or via a proxy.
func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
