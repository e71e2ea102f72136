package local

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/users"
)

const generatedPasswordBytes = 18

// EnsureAdmin makes sure an administrator with the given email exists. When
// the user has to be created and no password is supplied, a random one is
// generated and returned; otherwise the returned password is empty.
func EnsureAdmin(repo users.UserRepo, email, password string) (string, error) {
	existing, err := repo.GetByEmail(email)
	switch {
	case err == nil && existing != nil:
		if existing.Role != users.RoleAdmin {
			existing.Role = users.RoleAdmin
			if err := repo.Upsert(existing); err != nil {
				return "", apperrors.Wrapf(err, "[local.EnsureAdmin] promote %s", email)
			}
		}
		return "", nil
	case err != nil && !apperrors.Is(err, apperrors.ErrNotFound):
		return "", apperrors.Wrapf(err, "[local.EnsureAdmin] look up %s", email)
	}

	generated := ""
	if password == "" {
		buf := make([]byte, generatedPasswordBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("[local.EnsureAdmin] generate password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(buf)
		generated = password
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("[local.EnsureAdmin] hash password: %w", err)
	}
	admin := &users.User{
		ID:           AdminID(email),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		Role:         users.RoleAdmin,
		DateJoined:   NowTimeFunc(),
	}
	if err := repo.Upsert(admin); err != nil {
		return "", apperrors.Wrapf(err, "[local.EnsureAdmin] create %s", email)
	}
	return generated, nil
}

// AdminID derives the seeded administrator's ID from their email, so that every
// process sharing a signing secret agrees on it.
func AdminID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(strings.TrimSpace(email)))).String()
}

// GenerateSecret returns a random HS256 signing secret.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, minSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("[local.GenerateSecret] %w", err)
	}
	return secret, nil
}
