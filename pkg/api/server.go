package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/accounts/pkg/accounts"
	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/httputil"
	"github.com/platinummonkey/accounts/pkg/middleware"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/rbac"
)

// Options configures the API server. Zero values disable the optional parts.
type Options struct {
	// PathPrefix mounts every route below it, e.g. /api/v1/users
	PathPrefix string
	// RateLimiter limits /login and /signup per client address
	RateLimiter    middleware.Limiter
	TrustProxy     bool
	AllowedOrigins []string
	MaxBodyBytes   int64

	Audit   audit.Logger
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server represents our API server
type Server struct {
	accounts *accounts.Service
	authn    *middleware.AuthMiddleware
	roles    *rbac.RoleMiddleware
	opts     Options

	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(svc *accounts.Service, authn *middleware.AuthMiddleware, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNoOpLogger()
	}

	s := &Server{
		accounts: svc,
		authn:    authn,
		roles:    rbac.NewRoleMiddleware(opts.Metrics),
		opts:     opts,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.AllowedOrigins),
	}
	if opts.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	chain = append(chain, audit.Middleware(opts.Audit, opts.TrustProxy))

	s.handler = otelhttp.NewHandler(httputil.Chain(chain...)(s.router), "accounts-api")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))

	base := s.router
	if s.opts.PathPrefix != "" {
		base = s.router.PathPrefix(s.opts.PathPrefix).Subrouter()
	}

	// Public routes
	public := base.NewRoute().Subrouter()
	if s.opts.RateLimiter != nil {
		public.Use(middleware.NewRateLimitMiddleware("auth", s.opts.RateLimiter, s.opts.TrustProxy, s.opts.Metrics).Handler)
	}
	public.HandleFunc("/login", s.login).Methods(http.MethodPost)
	public.HandleFunc("/signup", s.signup).Methods(http.MethodPost)

	// Any authenticated principal. Registered before the admin /{id} routes
	// so that /deleteMe is never read as an id.
	self := base.NewRoute().Subrouter()
	self.Use(s.authn.Handler)
	self.HandleFunc("/deleteMe", s.deleteMe).Methods(http.MethodDelete)

	// Administrators only
	admin := base.NewRoute().Subrouter()
	admin.Use(s.authn.Handler, s.roles.RequireRoles(auth.RoleAdmin))
	admin.HandleFunc("/", s.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/", s.createUser).Methods(http.MethodPost)
	admin.HandleFunc("/{id}", s.getUser).Methods(http.MethodGet)
	admin.HandleFunc("/{id}", s.updateUser).Methods(http.MethodPatch)
	admin.HandleFunc("/{id}", s.deleteUser).Methods(http.MethodDelete)
}

// Router exposes the route table, mainly for tests and route listings
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
