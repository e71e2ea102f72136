package server

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-studio-gateway/gate"
	"github.com/jrsteele09/go-studio-gateway/guard"
	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/rs/zerolog"
)

func (s *Server) gateOptions() gate.Options {
	return gate.Options{
		RedirectPath: s.config.GetAuthRedirectPath(),
		AdminPath:    s.config.GetAdminLandingPath(),
		DefaultPath:  s.config.GetDefaultLandingPath(),
	}
}

// adminGateOptions sends unauthenticated visitors to the site root rather than
// the login page.
func (s *Server) adminGateOptions() gate.Options {
	opts := s.gateOptions()
	opts.RequiredRole = users.RoleAdmin
	opts.RedirectPath = s.config.GetDefaultLandingPath()
	return opts
}

// optionsForRoute picks the gate options protecting an app route. It matches
// the same prefix the admin page routes are registered under.
func (s *Server) optionsForRoute(route string) gate.Options {
	if route == RouteAdmin || strings.HasPrefix(route, RouteAdmin+"/") {
		return s.adminGateOptions()
	}
	return s.gateOptions()
}

// pageSettleMargin is added to the verify and role budgets so that a provider
// timeout reaches the guard as an error before the page gives up.
const pageSettleMargin = 500 * time.Millisecond

// pageGuardTimeout bounds a whole page guard evaluation: one session lookup
// and one role lookup, each with its own verify timeout.
func (s *Server) pageGuardTimeout() time.Duration {
	return 2*s.config.GetVerifyTimeout() + pageSettleMargin
}

// sessionVerifier wraps the provider with the verification timeout and panic recovery.
func (s *Server) sessionVerifier() sessions.Verifier {
	return sessions.VerifierFunc(func(ctx context.Context, token string) (users.Identity, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.GetVerifyTimeout())
		defer cancel()
		return s.verify(ctx, token)
	})
}

// roleResolver bounds each role lookup by the verify timeout.
func (s *Server) roleResolver() roles.Resolver {
	return roles.ResolverFunc(func(ctx context.Context, identity users.Identity) (users.Role, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.GetVerifyTimeout())
		defer cancel()
		return s.resolveRole(ctx, identity)
	})
}

func (s *Server) observeDecision(d gate.Decision) {
	s.metrics.GateDecision(string(d.Kind))
}

// pageView records the decision for a single page request. The response is
// written once the guard has settled.
type pageView struct {
	decision gate.Decision
}

func (v *pageView) Loading()            { v.decision = gate.Decision{Kind: gate.Pending} }
func (v *pageView) Replace(path string) { v.decision = gate.Decision{Kind: gate.Redirect, Path: path} }
func (v *pageView) Render()             { v.decision = gate.Decision{Kind: gate.Allow} }

type shellData struct {
	AppName string
	Route   string
}

// PageGuardHandler serves the app shell behind the route guard. Navigations
// carry the session in a cookie, or in the Authorization header for scripted
// clients. Redirects use 303 so the browser replaces the guarded entry. A
// provider that times out counts as no session; only a lookup that ignores its
// deadline leaves the page pending, which answers 503.
func (s *Server) PageGuardHandler(opts gate.Options) http.HandlerFunc {
	shell := mustParseTemplate("app.html")

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.pageGuardTimeout())
		defer cancel()

		view := &pageView{}
		source := sessions.NewTokenSource(requestToken(r), s.sessionVerifier())
		guard.New(view, opts, guard.WithObserver(s.observeDecision)).
			Mount(ctx, guard.Load(ctx, source, s.roleResolver()))

		switch view.decision.Kind {
		case gate.Redirect:
			http.Redirect(w, r, view.decision.Path, http.StatusSeeOther)
		case gate.Allow:
			renderShell(w, r, shell, shellData{AppName: s.config.GetAppName(), Route: r.URL.Path})
		default:
			zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("page guard did not settle")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		}
	}
}

// ShellHandler serves the app shell without a guard, for public routes such as
// the login page that guarded routes redirect to.
func (s *Server) ShellHandler() http.HandlerFunc {
	shell := mustParseTemplate("app.html")
	return func(w http.ResponseWriter, r *http.Request) {
		renderShell(w, r, shell, shellData{AppName: s.config.GetAppName(), Route: r.URL.Path})
	}
}

func renderShell(w http.ResponseWriter, r *http.Request, shell *template.Template, data shellData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shell.Execute(w, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render app shell")
	}
}
