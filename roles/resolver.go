// Package roles derives a user's role from their verified session.
package roles

import (
	"context"

	"github.com/jrsteele09/go-studio-gateway/users"
)

// Resolver derives a role for a verified identity. Roles are owned by the
// backing service; resolvers only read them.
type Resolver interface {
	ResolveRole(ctx context.Context, identity users.Identity) (users.Role, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, identity users.Identity) (users.Role, error)

func (f ResolverFunc) ResolveRole(ctx context.Context, identity users.Identity) (users.Role, error) {
	return f(ctx, identity)
}

// ClaimResolver trusts the role carried on the verified identity and defaults
// to RoleUser when the token carried none.
type ClaimResolver struct{}

func (ClaimResolver) ResolveRole(_ context.Context, identity users.Identity) (users.Role, error) {
	if identity.Role == users.RoleNone {
		return users.RoleUser, nil
	}
	return identity.Role, nil
}

// Chain asks each resolver in turn and returns the first non-empty role.
// An error from any resolver stops the chain.
type Chain []Resolver

func (c Chain) ResolveRole(ctx context.Context, identity users.Identity) (users.Role, error) {
	for _, r := range c {
		role, err := r.ResolveRole(ctx, identity)
		if err != nil {
			return users.RoleNone, err
		}
		if role != users.RoleNone {
			return role, nil
		}
	}
	return users.RoleUser, nil
}
