package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/metrics"
	"github.com/namelens/repolens/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{
		Registry:      metrics.Registry,
		ErrorLog:      zap.NewStdLog(s.logger),
		ErrorHandling: promhttp.ContinueOnError,
	}))
}
