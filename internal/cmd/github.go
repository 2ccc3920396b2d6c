package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/core/engine"
	"github.com/namelens/repolens/internal/core/extractor"
)

// newEngine builds the request engine from the github config section.
func newEngine(cfg config.GitHubConfig, observer engine.QuotaObserver, logger *zap.Logger) (*engine.Engine, error) {
	pool, err := engine.NewTokenPool(cfg.Tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	eng, err := engine.NewEngine(cfg.APIURL, pool)
	if err != nil {
		return nil, err
	}

	source, err := engine.ParseQuotaSource(cfg.QuotaSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	if cfg.Timeout > 0 {
		eng.Client = &http.Client{Timeout: cfg.Timeout}
	}
	eng.MaxRetries = cfg.MaxRetries
	if cfg.BackoffBase > 0 {
		eng.BackoffBase = cfg.BackoffBase
	}
	eng.Tracker = &engine.Tracker{
		LowRemaining:       cfg.LowRemaining,
		ExhaustedRemaining: cfg.ExhaustedRemaining,
		PauseBuffer:        cfg.PauseBuffer,
	}
	eng.QuotaSource = source
	eng.UserAgent = cfg.UserAgent
	eng.Observer = observer
	eng.Logger = logger

	logger.Debug("Request engine ready",
		zap.String("api_url", cfg.APIURL),
		zap.Int("credentials", pool.Size()),
		zap.Int("max_retries", eng.MaxRetries),
		zap.String("quota_source", string(source)))
	return eng, nil
}

// newFetcher wires a repository fetcher onto a fresh engine.
func newFetcher(cfg config.GitHubConfig, observer engine.QuotaObserver, logger *zap.Logger) (*extractor.RepositoryFetcher, error) {
	eng, err := newEngine(cfg, observer, logger)
	if err != nil {
		return nil, err
	}
	return &extractor.RepositoryFetcher{Requester: eng, Logger: logger}, nil
}
