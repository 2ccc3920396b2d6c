package extractor

import (
	"context"

	"github.com/namelens/repolens/internal/core/engine"
)

// Requester executes one logical GraphQL call. *engine.Engine implements it.
type Requester interface {
	Execute(ctx context.Context, query engine.Query) (*engine.Payload, error)
}
