package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-studio-gateway/internal/config"
	"github.com/jrsteele09/go-studio-gateway/roles"
	rolespg "github.com/jrsteele09/go-studio-gateway/roles/postgres"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/sessions/local"
	"github.com/jrsteele09/go-studio-gateway/sessions/oidc"
	"github.com/jrsteele09/go-studio-gateway/sessions/remote"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog/log"
)

// components are the collaborators the gateway is assembled from.
type components struct {
	verifier sessions.Verifier
	resolver roles.Resolver
	local    *local.Provider
	users    users.UserRepo
	pool     *pgxpool.Pool
}

func (c *components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	c := &components{}

	switch provider := cfg.GetSessionProvider(); provider {
	case config.ProviderLocal:
		if err := c.buildLocal(cfg); err != nil {
			return nil, err
		}
	case config.ProviderRemote:
		client, err := remote.New(cfg.GetRemoteURL(), cfg.GetRemoteAPIKey(),
			remote.WithTimeout(cfg.GetVerifyTimeout()),
			remote.WithRoleClaim(cfg.GetRoleClaim()),
		)
		if err != nil {
			return nil, err
		}
		c.verifier = client
	case config.ProviderOIDC:
		verifier, err := oidc.New(ctx, cfg.GetOIDCIssuer(), cfg.GetOIDCClientID(), cfg.GetRoleClaim())
		if err != nil {
			return nil, err
		}
		c.verifier = verifier
	default:
		return nil, fmt.Errorf("unknown session provider %q", provider)
	}

	switch source := cfg.GetRoleSource(); source {
	case config.RoleSourceClaims:
		c.resolver = roles.ClaimResolver{}
	case config.RoleSourcePostgres:
		pool, err := rolespg.Connect(ctx, cfg.GetDatabaseURL())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("role store: %w", err)
		}
		c.pool = pool
		c.resolver = roles.Chain{rolespg.New(pool), roles.ClaimResolver{}}
	default:
		return nil, fmt.Errorf("unknown role source %q", source)
	}

	log.Info().
		Str("session_provider", cfg.GetSessionProvider()).
		Str("role_source", cfg.GetRoleSource()).
		Msg("components ready")
	return c, nil
}

func (c *components) buildLocal(cfg config.Config) error {
	opts := local.OptionsFromConfig(cfg)
	if len(opts.Secret) == 0 {
		if cfg.GetEnv() != "DEV" {
			return errors.New("JWT_SECRET is required for the local session provider")
		}
		secret, err := local.GenerateSecret()
		if err != nil {
			return err
		}
		opts.Secret = secret
		log.Warn().Msg("JWT_SECRET not set; using a random secret, sessions end on restart")
	}

	repo := users.NewInMemoryUserRepo()
	password, err := local.EnsureAdmin(repo, cfg.GetAdminEmail(), cfg.GetAdminPassword())
	if err != nil {
		return err
	}
	if password != "" {
		log.Warn().
			Str("email", cfg.GetAdminEmail()).
			Str("password", password).
			Msg("generated administrator password")
	}

	provider, err := local.New(repo, opts)
	if err != nil {
		return err
	}
	c.local = provider
	c.users = repo
	c.verifier = provider
	return nil
}
