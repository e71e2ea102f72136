package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes (local session provider only)
	RouteAuthLogin   = "/auth/login"
	RouteAuthLogout  = "/auth/logout"
	RouteAuthRefresh = "/auth/refresh"

	// API Routes
	RouteAPIMe         = "/api/me"
	RouteAPIAdminUsers = "/api/admin/users"

	// Route guard
	RouteWSGuard = "/ws/guard"

	// App shell (public)
	RouteIndex    = "/{$}"
	RouteAuthPage = "/auth"

	// App shell (page guarded)
	RouteApp   = "/app"
	RouteAdmin = "/admin"

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
