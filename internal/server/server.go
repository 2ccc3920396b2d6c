package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/namelens/repolens/internal/errors"
	"github.com/namelens/repolens/internal/server/handlers"
	servermw "github.com/namelens/repolens/internal/server/middleware"
)

// Server exposes health, version and Prometheus metrics while a run is active.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	host      string
	port      int
	logger    *zap.Logger
	health    *handlers.HealthManager
	responder apperrors.Responder
}

// New creates a server bound to host:port once started.
func New(host string, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:    chi.NewRouter(),
		host:      host,
		port:      port,
		logger:    logger,
		responder: apperrors.Responder{Logger: logger},
	}
	s.health = handlers.NewHealthManager(handlers.AppVersion, s.responder)

	s.router.Use(middleware.RealIP)
	s.router.Use(servermw.RequestID)
	s.router.Use(servermw.RequestMetrics(logger))
	s.router.Use(servermw.Recovery(s.respondPanic))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.responder.Respond(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.responder.Respond(w, r, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// RegisterChecker adds a health check reported by /health and /health/ready.
func (s *Server) RegisterChecker(name string, checker handlers.HealthChecker) {
	s.health.RegisterChecker(name, checker)
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown, including one that happened before Start.
func (s *Server) Start() error {
	s.logger.Info("Starting metrics server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down metrics server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) respondPanic(w http.ResponseWriter, r *http.Request, recovered any, stack string) {
	s.responder.RespondWithEnvelope(w, r, apperrors.NewPanicError(r.Context(), recovered, stack))
}
