// Package local is a self-hosted session provider. It stands in for the hosted
// auth service during development and in single-node deployments: it checks
// passwords against a user repo and issues HS256 access tokens.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-studio-gateway/internal/config"
	apperrors "github.com/jrsteele09/go-studio-gateway/internal/errors"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const minSecretLength = 32

// checkPassword compares a password with a bcrypt hash.
var checkPassword = users.CheckPasswordHash

// absentUserHash is compared against when the email is unknown, so that a
// failed login costs one bcrypt comparison whether or not the user exists.
var absentUserHash = sync.OnceValue(func() string {
	hash, err := users.HashPassword(uuid.NewString())
	if err != nil {
		return ""
	}
	return hash
})

// Claims are the access token claims issued by the provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Options configures a Provider.
type Options struct {
	Secret  []byte
	Issuer  string
	Expiry  time.Duration
	Revoked RevokedTokenCache
}

// OptionsFromConfig builds provider options from the session configuration.
func OptionsFromConfig(cfg config.SessionConfig) Options {
	return Options{
		Secret: []byte(cfg.GetJWTSecret()),
		Issuer: cfg.GetTokenIssuer(),
		Expiry: cfg.GetAccessTokenExpiry(),
	}
}

// Provider issues and verifies access tokens for users held in a UserRepo.
type Provider struct {
	users   users.UserRepo
	signer  *HMACSigner
	issuer  string
	expiry  time.Duration
	revoked RevokedTokenCache
}

var _ sessions.Verifier = (*Provider)(nil)

func New(repo users.UserRepo, opts Options) (*Provider, error) {
	if len(opts.Secret) < minSecretLength {
		return nil, fmt.Errorf("[local.New] signing secret must be at least %d bytes", minSecretLength)
	}
	if opts.Issuer == "" {
		return nil, errors.New("[local.New] issuer is required")
	}
	if opts.Expiry <= 0 {
		opts.Expiry = time.Hour
	}
	if opts.Revoked == nil {
		opts.Revoked = NewInMemoryRevokedTokenCache()
	}
	return &Provider{
		users:   repo,
		signer:  NewHMACSigner(opts.Secret),
		issuer:  opts.Issuer,
		expiry:  opts.Expiry,
		revoked: opts.Revoked,
	}, nil
}

// Login checks the user's password and opens a new session.
func (p *Provider) Login(ctx context.Context, email, password string) (*sessions.Session, error) {
	user, err := p.users.GetByEmail(strings.TrimSpace(email))
	if err != nil || user == nil {
		checkPassword(password, absentUserHash())
		return nil, apperrors.ErrInvalidCredentials
	}
	if !checkPassword(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, apperrors.ErrUserBlocked
	}

	user.LastLogin = NowTimeFunc()
	if err := p.users.Upsert(user); err != nil {
		return nil, apperrors.Wrapf(err, "[Provider.Login] record login for %s", user.ID)
	}
	return p.Issue(user)
}

// Issue signs a fresh access token for the user.
func (p *Provider) Issue(user *users.User) (*sessions.Session, error) {
	now := NowTimeFunc()
	expiresAt := now.Add(p.expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Email: user.Email,
		Role:  string(user.EffectiveRole()),
	}

	token, err := p.signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	return &sessions.Session{
		Token: token,
		Identity: users.Identity{
			ID:        user.ID,
			Email:     user.Email,
			Role:      user.EffectiveRole(),
			ExpiresAt: expiresAt.Truncate(time.Second),
		},
	}, nil
}

// GetUser verifies a token and returns the identity it belongs to. The role
// comes from the current user record so that demotions apply immediately.
func (p *Provider) GetUser(ctx context.Context, token string) (users.Identity, error) {
	claims, err := p.parse(token)
	if err != nil {
		return users.Identity{}, err
	}

	user, err := p.users.GetByID(claims.Subject)
	if err != nil || user == nil {
		return users.Identity{}, fmt.Errorf("%w: unknown subject", apperrors.ErrInvalidToken)
	}
	if user.Blocked {
		return users.Identity{}, apperrors.ErrUserBlocked
	}

	return users.Identity{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.EffectiveRole(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the token so it is rejected until it would have expired.
func (p *Provider) Logout(ctx context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return err
	}
	return p.revoked.Add(claims.ID, claims.ExpiresAt.Time)
}

// Refresh exchanges a still-valid token for a new one and revokes the old one.
func (p *Provider) Refresh(ctx context.Context, token string) (*sessions.Session, error) {
	claims, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	user, err := p.users.GetByID(claims.Subject)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: unknown subject", apperrors.ErrInvalidToken)
	}
	if user.Blocked {
		return nil, apperrors.ErrUserBlocked
	}

	session, err := p.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := p.revoked.Add(claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, apperrors.Wrapf(err, "[Provider.Refresh] revoke previous token")
	}
	return session, nil
}

func (p *Provider) parse(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, p.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", apperrors.ErrInvalidToken)
	}
	if p.revoked.IsRevoked(claims.ID) {
		return nil, apperrors.ErrTokenRevoked
	}
	return claims, nil
}
