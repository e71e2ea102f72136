package config

import "time"

type SessionConfig interface {
	GetJWTSecret() string
	GetTokenIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetVerifyTimeout() time.Duration
	GetRemoteURL() string
	GetRemoteAPIKey() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetRoleClaim() string
	GetAdminEmail() string
	GetAdminPassword() string
}

type Session struct {
	values fileValues
}

var _ SessionConfig = Session{}

func (s Session) GetJWTSecret() string {
	return s.values.get("JWT_SECRET", "")
}

func (s Session) GetTokenIssuer() string {
	return s.values.get("TOKEN_ISSUER", "content-studio")
}

func (s Session) GetAccessTokenExpiry() time.Duration {
	return s.duration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

// GetVerifyTimeout bounds a single call into the session provider.
func (s Session) GetVerifyTimeout() time.Duration {
	return s.duration("VERIFY_TIMEOUT", 5*time.Second)
}

// GetRemoteURL is the base URL of the hosted auth service (e.g., "https://xyz.supabase.co")
func (s Session) GetRemoteURL() string {
	return s.values.get("REMOTE_AUTH_URL", "")
}

func (s Session) GetRemoteAPIKey() string {
	return s.values.get("REMOTE_AUTH_API_KEY", "")
}

func (s Session) GetOIDCIssuer() string {
	return s.values.get("OIDC_ISSUER", "")
}

func (s Session) GetOIDCClientID() string {
	return s.values.get("OIDC_CLIENT_ID", "")
}

// GetRoleClaim names the token claim carrying the user's role.
func (s Session) GetRoleClaim() string {
	return s.values.get("ROLE_CLAIM", "role")
}

// GetAdminEmail is the administrator seeded into the local provider's user store.
func (s Session) GetAdminEmail() string {
	return s.values.get("ADMIN_EMAIL", "admin@localhost")
}

// GetAdminPassword is the seeded administrator's password. When empty a random
// password is generated and logged once.
func (s Session) GetAdminPassword() string {
	return s.values.get("ADMIN_PASSWORD", "")
}

func (s Session) duration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s.values.get(envVar, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
