// Package postgres resolves studio roles from the user_roles table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/users"
)

const selectRoleQuery = `SELECT role FROM user_roles WHERE user_id = $1`

// Querier is the part of a pgx pool the resolver needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver looks up a user's role by ID. Users without a row resolve to
// RoleNone so a roles.Chain can fall through to the next resolver.
type Resolver struct {
	db Querier
}

var _ roles.Resolver = (*Resolver)(nil)

func New(db Querier) *Resolver {
	return &Resolver{db: db}
}

// Connect opens a pgx pool and checks that the database is reachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (r *Resolver) ResolveRole(ctx context.Context, identity users.Identity) (users.Role, error) {
	var value string
	err := r.db.QueryRow(ctx, selectRoleQuery, identity.ID).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return users.RoleNone, nil
	}
	if err != nil {
		return users.RoleNone, fmt.Errorf("select role for %s: %w", identity.ID, err)
	}
	return users.ParseRole(value)
}
