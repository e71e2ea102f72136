package config

import "strings"

type AuthConfig interface {
	// GetSessionProvider selects the token verifier: "local", "remote" or "oidc".
	GetSessionProvider() string
	// GetRoleSource selects the role resolver: "claims" or "postgres".
	GetRoleSource() string
	GetAuthRedirectPath() string
	GetAdminLandingPath() string
	GetDefaultLandingPath() string
}

const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
	ProviderOIDC   = "oidc"

	RoleSourceClaims   = "claims"
	RoleSourcePostgres = "postgres"
)

type Auth struct {
	values fileValues
}

var _ AuthConfig = Auth{}

func (a Auth) GetSessionProvider() string {
	return strings.ToLower(a.values.get("SESSION_PROVIDER", ProviderLocal))
}

func (a Auth) GetRoleSource() string {
	return strings.ToLower(a.values.get("ROLE_SOURCE", RoleSourceClaims))
}

func (a Auth) GetAuthRedirectPath() string {
	return a.values.get("AUTH_REDIRECT_PATH", "/auth")
}

func (a Auth) GetAdminLandingPath() string {
	return a.values.get("ADMIN_LANDING_PATH", "/admin")
}

func (a Auth) GetDefaultLandingPath() string {
	return a.values.get("DEFAULT_LANDING_PATH", "/")
}
