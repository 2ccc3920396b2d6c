package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/namelens/repolens/internal/core/engine"
)

type stubRequester struct {
	payload *engine.Payload
	err     error
	queries []engine.Query
}

func (s *stubRequester) Execute(ctx context.Context, query engine.Query) (*engine.Payload, error) {
	s.queries = append(s.queries, query)
	return s.payload, s.err
}

const repositoryJSON = `{
  "repository": {
    "id": "R_kgDOA",
    "name": "requests",
    "owner": {"login": "psf"},
    "description": "A simple, yet elegant, HTTP library.",
    "stargazerCount": 51000,
    "forkCount": 9200,
    "primaryLanguage": {"name": "Python"},
    "createdAt": "2011-02-13T18:38:17Z",
    "pushedAt": "2025-02-01T10:00:00Z",
    "licenseInfo": {"name": "Apache License 2.0"},
    "isArchived": false,
    "isDisabled": false,
    "isFork": false,
    "url": "https://github.com/psf/requests",
    "repositoryTopics": {"nodes": [{"topic": {"name": "http"}}, {"topic": {"name": "python"}}]}
  },
  "rateLimit": {"limit": 5000, "cost": 1, "remaining": 4999, "resetAt": "2025-03-01T13:00:00Z"}
}`

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestFetchDecodesRepository(t *testing.T) {
	requester := &stubRequester{payload: &engine.Payload{Data: json.RawMessage(repositoryJSON), Attempts: 1}}
	fetcher := &RepositoryFetcher{Requester: requester}

	repo, ok := fetcher.Fetch(context.Background(), "psf", "requests")
	require.True(t, ok)
	require.Equal(t, "R_kgDOA", repo.ID)
	require.Equal(t, "psf", repo.Owner.Login)
	require.Equal(t, 51000, repo.StargazerCount)
	require.Equal(t, "Python", repo.PrimaryLanguage.Name)
	require.Equal(t, "Apache License 2.0", repo.LicenseInfo.Name)
	require.Equal(t, []string{"http", "python"}, repo.Topics.Names())
	require.Equal(t, time.Date(2011, 2, 13, 18, 38, 17, 0, time.UTC), repo.CreatedAt.UTC())

	require.Len(t, requester.queries, 1)
	query := requester.queries[0]
	require.Equal(t, "GetRepositoryMetadata", query.Name)
	require.Equal(t, map[string]any{"owner": "psf", "name": "requests"}, query.Variables)
	require.Contains(t, query.Document, "rateLimit { limit cost remaining resetAt }")
}

func TestFetchNullRepositoryIsAbsent(t *testing.T) {
	logger, logs := observedLogger()
	requester := &stubRequester{payload: &engine.Payload{Data: json.RawMessage(`{"repository":null}`)}}
	fetcher := &RepositoryFetcher{Requester: requester, Logger: logger}

	repo, ok := fetcher.Fetch(context.Background(), "ghost", "none")
	require.False(t, ok)
	require.Nil(t, repo)
	require.Equal(t, 1, logs.FilterMessage("Repository not found").Len())

	_, err := fetcher.Lookup(context.Background(), "ghost", "none")
	require.ErrorIs(t, err, ErrRepositoryNotFound)
}

func TestFetchLogsAPIErrors(t *testing.T) {
	logger, logs := observedLogger()
	requester := &stubRequester{err: &engine.APIError{Messages: []string{"Something went wrong"}}}
	fetcher := &RepositoryFetcher{Requester: requester, Logger: logger}

	_, ok := fetcher.Fetch(context.Background(), "psf", "requests")
	require.False(t, ok)

	entries := logs.FilterMessage("Repository fetch failed with GraphQL errors").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "psf", fields["owner"])
	require.Equal(t, "requests", fields["name"])
}

func TestFetchHTTPNotFoundThroughEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	pool, err := engine.NewTokenPool([]string{"A"})
	require.NoError(t, err)
	eng, err := engine.NewEngine(server.URL, pool)
	require.NoError(t, err)
	eng.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	logger, logs := observedLogger()
	fetcher := &RepositoryFetcher{Requester: eng, Logger: logger}

	repo, ok := fetcher.Fetch(context.Background(), "psf", "requests")
	require.False(t, ok)
	require.Nil(t, repo)

	entries := logs.FilterMessage("Repository fetch failed with HTTP error").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(http.StatusNotFound), entries[0].ContextMap()["status"])
	require.Contains(t, entries[0].ContextMap()["body"], "Not Found")
}

func TestFetchRetriesExhaustedIsAbsent(t *testing.T) {
	logger, logs := observedLogger()
	requester := &stubRequester{err: &engine.RetriesExhaustedError{
		Attempts: 4,
		Err:      &engine.NetworkError{Err: errors.New("connection refused")},
	}}
	fetcher := &RepositoryFetcher{Requester: requester, Logger: logger}

	_, ok := fetcher.Fetch(context.Background(), "psf", "requests")
	require.False(t, ok)
	require.Equal(t, 1, logs.FilterMessage("Repository fetch gave up after retries").Len())
}

func TestFetchUndecodableDataIsAbsent(t *testing.T) {
	requester := &stubRequester{payload: &engine.Payload{Data: json.RawMessage(`{"repository":"oops"}`)}}
	fetcher := &RepositoryFetcher{Requester: requester}

	_, err := fetcher.Lookup(context.Background(), "psf", "requests")
	var decodeErr *engine.DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestFetchRequiresOwnerAndName(t *testing.T) {
	requester := &stubRequester{}
	fetcher := &RepositoryFetcher{Requester: requester}

	_, ok := fetcher.Fetch(context.Background(), " ", "requests")
	require.False(t, ok)
	require.Empty(t, requester.queries)
}
