// Package guard enforces gate decisions on a view as session and role state
// arrives.
//
// A Guard is mounted against a stream of State updates. Each update is run
// through gate.Decide and the view is told to show a loading placeholder,
// replace the current location, or render the protected content. Nothing is
// applied to the view once the mount context is cancelled.
package guard

import (
	"context"

	"github.com/jrsteele09/go-studio-gateway/gate"
	"github.com/jrsteele09/go-studio-gateway/users"
)

// State is a snapshot of session and role loading.
type State struct {
	SessionLoading bool       `json:"sessionLoading"`
	Authenticated  bool       `json:"authenticated"`
	RoleLoading    bool       `json:"roleLoading"`
	Role           users.Role `json:"role,omitempty"`
}

// Initial is the state a guard assumes before the first update arrives.
var Initial = State{SessionLoading: true}

func (s State) input() gate.Input {
	return gate.Input{
		SessionLoading: s.SessionLoading,
		Authenticated:  s.Authenticated,
		RoleLoading:    s.RoleLoading,
		UserRole:       s.Role,
	}
}

// View is what a guard drives.
type View interface {
	// Loading shows a placeholder while the decision is pending.
	Loading()
	// Replace navigates to path, replacing the current history entry.
	Replace(path string)
	// Render shows the protected content.
	Render()
}

type Option func(*Guard)

// WithObserver registers fn to be called with every decision applied to the view.
func WithObserver(fn func(gate.Decision)) Option {
	return func(g *Guard) {
		g.observe = fn
	}
}

type Guard struct {
	view     View
	opts     gate.Options
	observe  func(gate.Decision)
	retarget chan gate.Options
}

func New(view View, opts gate.Options, options ...Option) *Guard {
	g := &Guard{
		view:     view,
		opts:     opts,
		retarget: make(chan gate.Options),
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// NewAdmin guards an admin-only subtree. Unauthenticated users are sent to the
// site root.
func NewAdmin(view View, options ...Option) *Guard {
	return New(view, gate.AdminOptions(), options...)
}

// Mount applies decisions to the view until ctx is cancelled or states is
// closed, and returns the last decision applied. The view is only touched when
// the decision changes.
func (g *Guard) Mount(ctx context.Context, states <-chan State) gate.Decision {
	state := Initial
	current := gate.Decide(state.input(), g.opts)
	g.apply(current)

	for {
		select {
		case <-ctx.Done():
			return current
		case opts := <-g.retarget:
			g.opts = opts
		case next, ok := <-states:
			if !ok {
				return current
			}
			state = next
		}
		if ctx.Err() != nil {
			return current
		}

		next := gate.Decide(state.input(), g.opts)
		if next == current {
			continue
		}
		current = next
		g.apply(current)
	}
}

// SetOptions changes the gate options of a mounted guard, for example when the
// route it protects changes. The current state is re-evaluated immediately.
func (g *Guard) SetOptions(ctx context.Context, opts gate.Options) error {
	select {
	case g.retarget <- opts:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) apply(d gate.Decision) {
	switch d.Kind {
	case gate.Pending:
		g.view.Loading()
	case gate.Redirect:
		g.view.Replace(d.Path)
	case gate.Allow:
		g.view.Render()
	}
	if g.observe != nil {
		g.observe(d)
	}
}
