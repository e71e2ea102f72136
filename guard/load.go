package guard

import (
	"context"
	"time"

	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Load looks up the current session and then its role, publishing each step
// as a State. The channel is closed once the role is known, the session is
// found to be missing, or ctx is cancelled.
//
// A session that fails to load or has expired is reported as unauthenticated.
// A role that fails to load is reported as no role.
func Load(ctx context.Context, source sessions.Source, resolver roles.Resolver) <-chan State {
	out := make(chan State)

	go func() {
		defer close(out)

		if !send(ctx, out, State{SessionLoading: true}) {
			return
		}

		session, err := source.GetSession(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("guard: session lookup failed")
			send(ctx, out, State{})
			return
		}
		if session == nil {
			send(ctx, out, State{})
			return
		}
		if err := session.Identity.Validate(NowTimeFunc()); err != nil {
			log.Debug().Err(err).Str("user", session.Identity.ID).Msg("guard: session rejected")
			send(ctx, out, State{})
			return
		}

		if !send(ctx, out, State{Authenticated: true, RoleLoading: true}) {
			return
		}

		role, err := resolver.ResolveRole(ctx, session.Identity)
		if err != nil {
			log.Warn().Err(err).Str("user", session.Identity.ID).Msg("guard: role lookup failed")
			role = users.RoleNone
		}
		send(ctx, out, State{Authenticated: true, Role: role})
	}()

	return out
}

func send(ctx context.Context, out chan<- State, s State) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case out <- s:
		return true
	}
}
