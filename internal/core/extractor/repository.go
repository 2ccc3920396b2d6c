package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/core"
	"github.com/namelens/repolens/internal/core/engine"
)

// ErrRepositoryNotFound is returned when the API resolves the repository to null.
var ErrRepositoryNotFound = errors.New("repository not found")

const repositoryQueryName = "GetRepositoryMetadata"

const repositoryQuery = `query GetRepositoryMetadata($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    id
    name
    owner { login }
    description
    stargazerCount
    forkCount
    primaryLanguage { name }
    createdAt
    pushedAt
    licenseInfo { name }
    isArchived
    isDisabled
    isFork
    url
    repositoryTopics(first: 20) {
      nodes { topic { name } }
    }
  }
  rateLimit { limit cost remaining resetAt }
}`

type repositoryData struct {
	Repository *core.Repository `json:"repository"`
}

// RepositoryFetcher retrieves repository metadata through a Requester.
type RepositoryFetcher struct {
	Requester Requester
	Logger    *zap.Logger
}

// Fetch returns the repository, or false when it could not be retrieved for
// any reason. Failures are logged, never returned.
func (f *RepositoryFetcher) Fetch(ctx context.Context, owner, name string) (*core.Repository, bool) {
	repo, err := f.Lookup(ctx, owner, name)
	if err != nil {
		return nil, false
	}
	return repo, true
}

// Lookup is Fetch with the failure cause preserved. Every failure is logged.
func (f *RepositoryFetcher) Lookup(ctx context.Context, owner, name string) (*core.Repository, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	logger := f.logger().With(zap.String("owner", owner), zap.String("name", name))

	if f == nil || f.Requester == nil {
		err := errors.New("repository fetcher is not configured")
		logger.Error("Repository fetch failed", zap.Error(err))
		return nil, err
	}
	if owner == "" || name == "" {
		err := errors.New("owner and name are required")
		logger.Error("Repository fetch failed", zap.Error(err))
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := f.Requester.Execute(ctx, engine.Query{
		Name:      repositoryQueryName,
		Document:  repositoryQuery,
		Variables: map[string]any{"owner": owner, "name": name},
	})
	if err != nil {
		logFailure(logger, err)
		return nil, err
	}

	var data repositoryData
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			err = &engine.DecodeError{Err: err, Body: string(payload.Data)}
			logFailure(logger, err)
			return nil, err
		}
	}
	if data.Repository == nil {
		logger.Warn("Repository not found")
		return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrRepositoryNotFound)
	}

	logger.Debug("Fetched repository",
		zap.String("id", data.Repository.ID),
		zap.Int("attempts", payload.Attempts))
	return data.Repository, nil
}

func logFailure(logger *zap.Logger, err error) {
	var (
		httpErr   *engine.HTTPError
		apiErr    *engine.APIError
		decodeErr *engine.DecodeError
		exhausted *engine.RetriesExhaustedError
	)
	switch {
	case errors.As(err, &exhausted):
		logger.Error("Repository fetch gave up after retries",
			zap.Int("attempts", exhausted.Attempts),
			zap.Error(exhausted.Err))
	case errors.As(err, &httpErr):
		logger.Error("Repository fetch failed with HTTP error",
			zap.Int("status", httpErr.Status),
			zap.String("body", httpErr.Body))
	case errors.As(err, &apiErr):
		logger.Error("Repository fetch failed with GraphQL errors",
			zap.Strings("messages", apiErr.Messages))
	case errors.As(err, &decodeErr):
		logger.Error("Repository fetch returned an undecodable response",
			zap.Error(decodeErr.Err))
	default:
		logger.Error("Repository fetch failed", zap.Error(err))
	}
}

func (f *RepositoryFetcher) logger() *zap.Logger {
	if f != nil && f.Logger != nil {
		return f.Logger
	}
	return zap.NewNop()
}
