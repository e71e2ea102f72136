// Package gate decides whether a navigation or request may proceed, given the
// current session and role state.
//
// Decide is a pure function. Callers re-evaluate it whenever any input
// changes: the session finishes loading, the role finishes loading, or the
// required role changes. Pending is never terminal; once both loads complete
// the decision is always Allow or Redirect.
package gate

import (
	"github.com/jrsteele09/go-studio-gateway/users"
)

// Kind is the outcome of a gate evaluation.
type Kind string

const (
	Pending  Kind = "pending"
	Allow    Kind = "allow"
	Redirect Kind = "redirect"
)

// Default redirect targets.
const (
	DefaultRedirectPath = "/auth"
	DefaultAdminPath    = "/admin"
	DefaultLandingPath  = "/"
)

// Decision is recomputed on every evaluation and never persisted.
type Decision struct {
	Kind Kind   `json:"state"`
	Path string `json:"path,omitempty"`
}

func (d Decision) IsPending() bool { return d.Kind == Pending }
func (d Decision) IsAllowed() bool { return d.Kind == Allow }

// Input is the session and role state the gate is evaluated against.
type Input struct {
	SessionLoading bool
	Authenticated  bool
	RoleLoading    bool
	UserRole       users.Role
}

// Options configure a gate. Redirect targets are configuration, never
// hard-coded in the decision logic.
type Options struct {
	// RedirectPath is where unauthenticated users are sent.
	RedirectPath string
	// RequiredRole, when set, must match the user's role exactly.
	RequiredRole users.Role
	// AdminPath is where admins lacking the required role are sent.
	AdminPath string
	// DefaultPath is where everyone else lacking the required role is sent.
	DefaultPath string
}

// DefaultOptions protects a route for any authenticated user.
func DefaultOptions() Options {
	return Options{
		RedirectPath: DefaultRedirectPath,
		AdminPath:    DefaultAdminPath,
		DefaultPath:  DefaultLandingPath,
	}
}

// AdminOptions protects an admin-only route. Unauthenticated visitors go to the site root.
func AdminOptions() Options {
	opts := DefaultOptions()
	opts.RequiredRole = users.RoleAdmin
	opts.RedirectPath = DefaultLandingPath
	return opts
}

func (o Options) withDefaults() Options {
	if o.RedirectPath == "" {
		o.RedirectPath = DefaultRedirectPath
	}
	if o.AdminPath == "" {
		o.AdminPath = DefaultAdminPath
	}
	if o.DefaultPath == "" {
		o.DefaultPath = DefaultLandingPath
	}
	return o
}

// Decide maps session and role state to exactly one decision.
func Decide(in Input, opts Options) Decision {
	opts = opts.withDefaults()

	if in.SessionLoading || in.RoleLoading {
		return Decision{Kind: Pending}
	}
	if !in.Authenticated {
		return Decision{Kind: Redirect, Path: opts.RedirectPath}
	}
	if opts.RequiredRole != users.RoleNone && in.UserRole != opts.RequiredRole {
		if in.UserRole == users.RoleAdmin {
			return Decision{Kind: Redirect, Path: opts.AdminPath}
		}
		return Decision{Kind: Redirect, Path: opts.DefaultPath}
	}
	return Decision{Kind: Allow}
}
