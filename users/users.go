package users

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// Role is the access tier attached to a session. It is written only by the
// session provider and read-only to the gating logic.
type Role string

const (
	RoleNone  Role = ""
	RoleAdmin Role = "admin" // Studio administrators
	RoleUser  Role = "user"  // Standard content creators
)

// ParseRole normalises a role label coming from a token claim or a database row.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleNone:
		return RoleNone, nil
	}
	return RoleNone, fmt.Errorf("%w: %q", apperrors.ErrUnknownRole, value)
}

func (r Role) IsKnown() bool {
	return r == RoleAdmin || r == RoleUser
}

// Identity is the verified user behind a bearer token.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Validate checks an identity returned by a session provider before it is
// trusted by any handler.
func (i Identity) Validate(now time.Time) error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: identity has no subject", apperrors.ErrInvalidToken)
	}
	if i.Role != RoleNone && !i.Role.IsKnown() {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownRole, i.Role)
	}
	if i.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: identity has no expiry", apperrors.ErrInvalidToken)
	}
	if !now.Before(i.ExpiresAt) {
		return apperrors.ErrTokenExpired
	}
	return nil
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// User is an account record held by the self-hosted session provider.
type User struct {
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	DisplayName  string    `json:"display_name,omitempty"`
	Role         Role      `json:"role,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// EffectiveRole defaults users without an explicit role to RoleUser.
func (u *User) EffectiveRole() Role {
	if u.Role == RoleNone {
		return RoleUser
	}
	return u.Role
}
