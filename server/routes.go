package server

import (
	"net/http"

	"github.com/jrsteele09/go-studio-gateway/users"
)

func (s *Server) initRoutes() {
	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.RequireAuth(s.MeHandler()), s.APIMiddleware()...))
	if s.users != nil {
		s.RegisterRouteHandler("GET "+RouteAPIAdminUsers, ChainMiddleware(s.RequireAuth(RequireRole(users.RoleAdmin, s.AdminUsersHandler())), s.APIMiddleware()...))
	}

	// Session routes
	if s.accounts != nil {
		s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	}

	// Route guard channel. No CORS or security headers; the upgrader checks the origin.
	s.RegisterRouteHandler("GET "+RouteWSGuard, ChainMiddleware(s.GuardSocketHandler(), s.BaseMiddleware()...))

	// App shell
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.ShellHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthPage, ChainMiddleware(s.ShellHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteApp, ChainMiddleware(s.PageGuardHandler(s.gateOptions()), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteApp+"/{path...}", ChainMiddleware(s.PageGuardHandler(s.gateOptions()), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.PageGuardHandler(s.adminGateOptions()), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAdmin+"/{path...}", ChainMiddleware(s.PageGuardHandler(s.adminGateOptions()), s.HTMLMiddleware()...))

	// Operational
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.BaseMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler())

	// CORS preflight for API routes
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(http.NotFound, s.APIMiddleware()...))
	s.RegisterRouteHandler("/", ChainMiddleware(http.NotFound, s.BaseMiddleware()...))
}
