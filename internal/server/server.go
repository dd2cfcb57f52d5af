// package server contains the router, middleware & handlers for the authorization service
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/metrics"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Route binds a method and path to a handler function.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Handler groups related routes so they can be registered together.
type Handler interface {
	Routes() []Route
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options contains the dependencies of a [Server].
type Options struct {
	Config  shared.ServerConfig
	Service services.OAuthService
	Store   CredentialStore
	DB      Pinger
	Logger  *log.Logger

	// Registry receives the flow metrics. When nil, metrics are discarded and /metrics is not mounted.
	Registry *prometheus.Registry
}

// Server is the HTTP front of the authorization flow.
type Server struct {
	http    *http.Server
	router  *BasicRouter
	limiter *RateLimiter
	logger  *log.Logger
}

// New builds the router, registers every route and prepares the underlying [http.Server].
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if opts.Registry != nil {
		recorder = metrics.NewCollector(opts.Registry)
	}

	limiter := NewRateLimiter(opts.Config.RateLimit, opts.Config.RateBurst)

	router := NewBasicRouter()
	router.Use(
		chimw.RequestID,
		AccessLog(opts.Logger, recorder),
		chimw.Recoverer,
		CORS(opts.Config.CORSOrigin),
		limiter.Middleware(),
	)

	router.Handler(NewAuthHandler(opts.Service, opts.Store, AuthHandlerConfig{
		StateTTL: opts.Config.StateTTL,
		Logger:   opts.Logger,
		Metrics:  recorder,
	}))
	router.Handle(http.MethodGet, "/", IndexHandler())
	if opts.DB != nil {
		router.Handle(http.MethodGet, "/healthz", HealthHandler(opts.DB))
	}
	if opts.Registry != nil && opts.Config.Metrics {
		router.Handle(http.MethodGet, "/metrics", metrics.Handler(opts.Registry))
	}

	return &Server{
		http: &http.Server{
			Addr:              opts.Config.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router:  router,
		limiter: limiter,
		logger:  opts.Logger,
	}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler exposes the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	return nil
}
