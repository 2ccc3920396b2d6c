package cmd

import (
	"context"
	"fmt"

	"github.com/namelens/repolens/internal/core/store"
)

// openStore opens and migrates the configured store. Failures wrap
// errStoreUnavailable so the process exits with a service-unavailable code.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errStoreUnavailable, err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", errStoreUnavailable, err)
	}

	return db, nil
}
