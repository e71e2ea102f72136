package guard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-studio-gateway/gate"
	"github.com/jrsteele09/go-studio-gateway/guard"
	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/stretchr/testify/require"
)

type recordingView struct {
	mu    sync.Mutex
	calls []string
}

func (v *recordingView) Loading()            { v.record("loading") }
func (v *recordingView) Replace(path string) { v.record("replace:" + path) }
func (v *recordingView) Render()             { v.record("render") }

func (v *recordingView) record(call string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, call)
}

func (v *recordingView) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

type sourceFunc func(ctx context.Context) (*sessions.Session, error)

func (f sourceFunc) GetSession(ctx context.Context) (*sessions.Session, error) { return f(ctx) }

func sessionFor(role users.Role) sessions.Source {
	return sourceFunc(func(context.Context) (*sessions.Session, error) {
		return &sessions.Session{
			Token: "abc123",
			Identity: users.Identity{
				ID:        "user-1",
				Role:      role,
				ExpiresAt: time.Now().Add(time.Hour),
			},
		}, nil
	})
}

var noSession = sourceFunc(func(context.Context) (*sessions.Session, error) { return nil, nil })

func TestGuard_UnauthenticatedRedirectsToAuth(t *testing.T) {
	view := &recordingView{}
	g := guard.New(view, gate.DefaultOptions())

	d := g.Mount(context.Background(), guard.Load(context.Background(), noSession, roles.ClaimResolver{}))

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/auth"}, d)
	require.Equal(t, []string{"loading", "replace:/auth"}, view.Calls())
}

func TestGuard_AdminRejectsStandardUser(t *testing.T) {
	view := &recordingView{}
	g := guard.NewAdmin(view)

	d := g.Mount(context.Background(), guard.Load(context.Background(), sessionFor(users.RoleUser), roles.ClaimResolver{}))

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/"}, d)
	require.Equal(t, []string{"loading", "replace:/"}, view.Calls())
}

func TestGuard_AdminRendersForAdmin(t *testing.T) {
	view := &recordingView{}
	var observed []gate.Decision
	g := guard.NewAdmin(view, guard.WithObserver(func(d gate.Decision) { observed = append(observed, d) }))

	d := g.Mount(context.Background(), guard.Load(context.Background(), sessionFor(users.RoleAdmin), roles.ClaimResolver{}))

	require.True(t, d.IsAllowed())
	require.Equal(t, []string{"loading", "render"}, view.Calls())
	require.Equal(t, []gate.Decision{{Kind: gate.Pending}, {Kind: gate.Allow}}, observed)
}

func TestGuard_SessionFailureIsUnauthenticated(t *testing.T) {
	view := &recordingView{}
	failing := sourceFunc(func(context.Context) (*sessions.Session, error) {
		return nil, errors.New("provider down")
	})

	d := guard.New(view, gate.DefaultOptions()).Mount(context.Background(), guard.Load(context.Background(), failing, roles.ClaimResolver{}))

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/auth"}, d)
}

func TestGuard_ExpiredSessionIsUnauthenticated(t *testing.T) {
	view := &recordingView{}
	expired := sourceFunc(func(context.Context) (*sessions.Session, error) {
		return &sessions.Session{Token: "t", Identity: users.Identity{ID: "u", ExpiresAt: time.Now().Add(-time.Minute)}}, nil
	})

	d := guard.New(view, gate.DefaultOptions()).Mount(context.Background(), guard.Load(context.Background(), expired, roles.ClaimResolver{}))

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/auth"}, d)
}

func TestGuard_RoleFailureIsNoRole(t *testing.T) {
	view := &recordingView{}
	failing := roles.ResolverFunc(func(context.Context, users.Identity) (users.Role, error) {
		return users.RoleNone, errors.New("db down")
	})

	d := guard.NewAdmin(view).Mount(context.Background(), guard.Load(context.Background(), sessionFor(users.RoleAdmin), failing))

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/"}, d)
}

func TestGuard_AppliesOnlyChanges(t *testing.T) {
	view := &recordingView{}
	states := make(chan guard.State, 5)
	states <- guard.State{SessionLoading: true}
	states <- guard.State{Authenticated: true, RoleLoading: true}
	states <- guard.State{Authenticated: true, Role: users.RoleUser}
	states <- guard.State{Authenticated: true, Role: users.RoleUser}
	close(states)

	guard.New(view, gate.DefaultOptions()).Mount(context.Background(), states)

	require.Equal(t, []string{"loading", "render"}, view.Calls())
}

func TestGuard_StopsOnUnmount(t *testing.T) {
	view := &recordingView{}
	states := make(chan guard.State)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan gate.Decision)
	go func() {
		done <- guard.New(view, gate.DefaultOptions()).Mount(ctx, states)
	}()

	states <- guard.State{SessionLoading: true}
	cancel()
	d := <-done

	require.True(t, d.IsPending())
	require.Equal(t, []string{"loading"}, view.Calls())

	select {
	case states <- guard.State{Authenticated: true}:
		t.Fatal("unmounted guard is still reading state")
	default:
	}
}

func TestGuard_SetOptionsReevaluates(t *testing.T) {
	view := &recordingView{}
	g := guard.New(view, gate.DefaultOptions())
	states := make(chan guard.State)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan gate.Decision)
	go func() { done <- g.Mount(ctx, states) }()

	states <- guard.State{Authenticated: true, Role: users.RoleUser}
	require.NoError(t, g.SetOptions(ctx, gate.AdminOptions()))
	close(states)

	require.Equal(t, gate.Decision{Kind: gate.Redirect, Path: "/"}, <-done)
	require.Equal(t, []string{"loading", "render", "replace:/"}, view.Calls())
}

func TestLoad_NoSendAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := sourceFunc(func(ctx context.Context) (*sessions.Session, error) {
		<-ctx.Done()
		return &sessions.Session{Identity: users.Identity{ID: "late", ExpiresAt: time.Now().Add(time.Hour)}}, nil
	})

	states := guard.Load(ctx, blocking, roles.ClaimResolver{})
	require.Equal(t, guard.State{SessionLoading: true}, <-states)
	cancel()

	for s := range states {
		t.Fatalf("unexpected state after cancel: %+v", s)
	}
}

func TestLoad_Sequence(t *testing.T) {
	var got []guard.State
	for s := range guard.Load(context.Background(), sessionFor(users.RoleNone), roles.ClaimResolver{}) {
		got = append(got, s)
	}
	require.Equal(t, []guard.State{
		{SessionLoading: true},
		{Authenticated: true, RoleLoading: true},
		{Authenticated: true, Role: users.RoleUser},
	}, got)
}
