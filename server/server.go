package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-studio-gateway/internal/config"
	"github.com/jrsteele09/go-studio-gateway/internal/metrics"
	"github.com/jrsteele09/go-studio-gateway/roles"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/jrsteele09/go-studio-gateway/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-studio-gateway/server"

// AccountProvider is implemented by session providers that manage their own
// sessions, such as the local provider. The hosted service handles these
// operations itself, so the routes are only registered when one is supplied.
type AccountProvider interface {
	Login(ctx context.Context, email, password string) (*sessions.Session, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*sessions.Session, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	verifier sessions.Verifier
	resolver roles.Resolver
	accounts AccountProvider
	users    users.UserRepo
	pingers  map[string]Pinger
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	tracer   trace.Tracer
	upgrader websocket.Upgrader
}

type Option func(*Server)

// WithAccounts enables the login, logout and refresh routes.
func WithAccounts(accounts AccountProvider) Option {
	return func(s *Server) {
		s.accounts = accounts
	}
}

// WithUserRepo enables the admin user listing.
func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

// WithHealthCheck adds a named dependency to the health endpoint.
func WithHealthCheck(name string, p Pinger) Option {
	return func(s *Server) {
		s.pingers[name] = p
	}
}

// WithMetrics records request and auth metrics and serves them from gatherer.
func WithMetrics(recorder *metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = recorder
		s.gatherer = gatherer
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

func New(cfg config.Config, verifier sessions.Verifier, resolver roles.Resolver, opts ...Option) (*Server, error) {
	if verifier == nil {
		return nil, fmt.Errorf("[server.New] a session verifier is required")
	}
	if resolver == nil {
		resolver = roles.ClaimResolver{}
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		verifier: verifier,
		resolver: resolver,
		pingers:  map[string]Pinger{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) metricsHandler() http.Handler {
	if s.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// checkOrigin accepts same-origin upgrades and those from the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.config.GetAllowedOrigins()
	if allowed.IsAllowedOrigin(origin) || allowed.IsAllowedOrigin("*") {
		return true
	}
	return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		log.Debug().Msgf("[%-19s] %s", colouredMethod(method), path)
	}
}
