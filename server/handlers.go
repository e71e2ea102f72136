package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type meResponse struct {
	User users.Identity `json:"user"`
}

// MeHandler returns the caller's verified identity.
func (s *Server) MeHandler() IdentityHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, identity users.Identity) {
		writeJSON(w, http.StatusOK, meResponse{User: identity})
	}
}

// userSummary is the admin view of a user. Password hashes never leave the repo.
type userSummary struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	Role       users.Role `json:"role"`
	Blocked    bool       `json:"blocked"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  time.Time  `json:"last_login,omitempty"`
}

type usersResponse struct {
	Users  []userSummary `json:"users"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}

// AdminUsersHandler lists users known to the local provider.
func (s *Server) AdminUsersHandler() IdentityHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, identity users.Identity) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultPageSize)
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}
		if offset < 0 {
			offset = 0
		}

		list, err := s.users.List(offset, limit)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("list users")
			writeJSONError(w, http.StatusInternalServerError, "Failed to list users")
			return
		}

		resp := usersResponse{Users: make([]userSummary, 0, len(list)), Offset: offset, Limit: limit}
		for _, u := range list {
			resp.Users = append(resp.Users, userSummary{
				ID:         u.ID,
				Email:      u.Email,
				Name:       u.DisplayName,
				Role:       u.EffectiveRole(),
				Blocked:    u.Blocked,
				DateJoined: u.DateJoined,
				LastLogin:  u.LastLogin,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports ok unless a registered dependency fails to respond.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK

		if len(s.pingers) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			resp.Checks = make(map[string]string, len(s.pingers))
			for name, p := range s.pingers {
				if err := p.Ping(ctx); err != nil {
					zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("health check failed")
					resp.Checks[name] = "unavailable"
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}
		writeJSON(w, status, resp)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
