package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/server"
	"github.com/namelens/repolens/internal/server/handlers"
)

const metricsShutdownTimeout = 5 * time.Second

// startMetricsServer serves /health, /version and /metrics in the background.
// The returned function shuts it down. A listen failure is logged and the run
// continues without the endpoint.
func startMetricsServer(cfg config.MetricsConfig, checker handlers.HealthChecker, logger *zap.Logger) func() {
	srv := server.New(cfg.Host, cfg.Port, logger)
	if checker != nil {
		srv.RegisterChecker("store", checker)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
}
