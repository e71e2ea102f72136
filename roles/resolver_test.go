package roles_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/stretchr/testify/require"
)

func TestClaimResolver(t *testing.T) {
	ctx := context.Background()

	role, err := roles.ClaimResolver{}.ResolveRole(ctx, users.Identity{ID: "u", Role: users.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, role)

	role, err = roles.ClaimResolver{}.ResolveRole(ctx, users.Identity{ID: "u"})
	require.NoError(t, err)
	require.Equal(t, users.RoleUser, role)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	none := roles.ResolverFunc(func(context.Context, users.Identity) (users.Role, error) {
		return users.RoleNone, nil
	})
	admin := roles.ResolverFunc(func(context.Context, users.Identity) (users.Role, error) {
		return users.RoleAdmin, nil
	})
	broken := roles.ResolverFunc(func(context.Context, users.Identity) (users.Role, error) {
		return users.RoleNone, errors.New("db down")
	})

	role, err := roles.Chain{none, admin}.ResolveRole(ctx, users.Identity{ID: "u"})
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, role)

	role, err = roles.Chain{none}.ResolveRole(ctx, users.Identity{ID: "u"})
	require.NoError(t, err)
	require.Equal(t, users.RoleUser, role)

	_, err = roles.Chain{broken, admin}.ResolveRole(ctx, users.Identity{ID: "u"})
	require.Error(t, err)
}
