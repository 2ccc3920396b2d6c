package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/namelens/repolens/internal/core"
)

type stubFetcher struct {
	mu     sync.Mutex
	repos  map[string]*core.Repository
	calls  []string
	onCall func(n int)
}

func (f *stubFetcher) Fetch(ctx context.Context, owner, name string) (*core.Repository, bool) {
	key := owner + "/" + name
	f.mu.Lock()
	f.calls = append(f.calls, key)
	n := len(f.calls)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	repo, ok := f.repos[key]
	return repo, ok
}

type memoryStore struct {
	mu        sync.Mutex
	batches   [][]core.Project
	extracted map[string]time.Time
	runs      []core.RunSummary
	upsertErr error
	lastErr   error
	recordErr error
}

func (m *memoryStore) UpsertProjects(ctx context.Context, projects []core.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.batches = append(m.batches, append([]core.Project(nil), projects...))
	return nil
}

func (m *memoryStore) LastExtracted(ctx context.Context, owner, name string) (*time.Time, error) {
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	if value, ok := m.extracted[owner+"/"+name]; ok {
		return &value, nil
	}
	return nil, nil
}

func (m *memoryStore) RecordRun(ctx context.Context, run core.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return m.recordErr
}

func (m *memoryStore) loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, batch := range m.batches {
		for _, project := range batch {
			ids = append(ids, project.ID)
		}
	}
	return ids
}

var runNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func repoFor(owner, name string) *core.Repository {
	return &core.Repository{ID: "R_" + owner + "_" + name, Name: name, Owner: core.Owner{Login: owner}}
}

func refs(values ...string) []core.RepositoryRef {
	out := make([]core.RepositoryRef, 0, len(values))
	for _, value := range values {
		owner, name, _ := strings.Cut(value, "/")
		out = append(out, core.RepositoryRef{Owner: owner, Name: name})
	}
	return out
}

func newOrchestrator(fetcher Fetcher, store Store) *Orchestrator {
	return &Orchestrator{
		Fetcher: fetcher,
		Store:   store,
		Clock:   func() time.Time { return runNow },
		NewID:   func() string { return "run-1" },
	}
}

func TestRunLoadsInBatches(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{}}
	input := refs("a/1", "a/2", "a/3", "a/4", "a/5")
	for _, ref := range input {
		fetcher.repos[ref.String()] = repoFor(ref.Owner, ref.Name)
	}
	store := &memoryStore{}

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.BatchSize = 2
	orchestrator.Source = "repos.csv"

	summary, err := orchestrator.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "run-1", summary.ID)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 5, summary.Loaded)
	require.Zero(t, summary.Failed)
	require.Len(t, store.batches, 3)
	require.Equal(t, []string{"R_a_1", "R_a_2", "R_a_3", "R_a_4", "R_a_5"}, store.loaded())
	require.Equal(t, runNow, store.batches[0][0].LastExtractedAt)

	require.Len(t, store.runs, 1)
	require.Equal(t, "repos.csv", store.runs[0].Source)
	require.Equal(t, 5, store.runs[0].Loaded)
}

func TestRunContinuesPastFailures(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{
		"a/ok":         repoFor("a", "ok"),
		"a/incomplete": {Name: "incomplete"},
	}}
	store := &memoryStore{}

	logCore, logs := observer.New(zapcore.InfoLevel)
	failureCore, failures := observer.New(zapcore.InfoLevel)

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.Logger = zap.New(logCore)
	orchestrator.FailureLog = zap.New(failureCore)

	summary, err := orchestrator.Run(context.Background(), refs("a/missing", "a/ok", "a/incomplete"))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Loaded)
	require.Equal(t, 2, summary.Failed)
	require.Equal(t, []string{"a/incomplete", "a/missing"}, summary.Failures)

	entries := failures.All()
	require.Len(t, entries, 2)
	stages := map[string]string{}
	for _, entry := range entries {
		fields := entry.ContextMap()
		require.Equal(t, "run-1", fields["run_id"])
		stages[fields["name"].(string)] = fields["stage"].(string)
	}
	require.Equal(t, map[string]string{"missing": "fetch", "incomplete": "transform"}, stages)
	for _, entry := range entries {
		if entry.ContextMap()["name"] == "missing" {
			require.Equal(t, ErrRepositoryUnavailable.Error(), entry.ContextMap()["error"])
		}
	}
	require.Equal(t, []string{"a/missing", "a/ok", "a/incomplete"}, fetcher.calls)
	require.Equal(t, 2, logs.FilterMessage("Repository skipped after failure").Len())
	require.Equal(t, 1, logs.FilterMessage("Extraction run finished").Len())
}

func TestRunSkipsFreshRepositories(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{
		"a/fresh": repoFor("a", "fresh"),
		"a/stale": repoFor("a", "stale"),
		"a/new":   repoFor("a", "new"),
	}}
	store := &memoryStore{extracted: map[string]time.Time{
		"a/fresh": runNow.Add(-time.Hour),
		"a/stale": runNow.Add(-48 * time.Hour),
	}}

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.RefreshAfter = 24 * time.Hour

	summary, err := orchestrator.Run(context.Background(), refs("a/fresh", "a/stale", "a/new"))
	require.NoError(t, err)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, 2, summary.Loaded)
	require.NotContains(t, fetcher.calls, "a/fresh")
}

func TestRunAbortsOnStoreFailure(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{"a/1": repoFor("a", "1")}}
	store := &memoryStore{upsertErr: errors.New("disk full")}

	summary, err := newOrchestrator(fetcher, store).Run(context.Background(), refs("a/1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.NotNil(t, summary)
	require.Zero(t, summary.Loaded)
	require.Len(t, store.runs, 1, "aborted runs are still recorded")
}

func TestRunAbortsOnFreshnessLookupFailure(t *testing.T) {
	fetcher := &stubFetcher{}
	store := &memoryStore{lastErr: errors.New("locked")}

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.RefreshAfter = time.Hour

	_, err := orchestrator.Run(context.Background(), refs("a/1"))
	require.Error(t, err)
	require.Empty(t, fetcher.calls)
}

func TestRunWithWorkers(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{}}
	var input []core.RepositoryRef
	for i := 0; i < 40; i++ {
		ref := core.RepositoryRef{Owner: "org", Name: fmt.Sprintf("repo-%02d", i)}
		input = append(input, ref)
		if i%10 != 0 {
			fetcher.repos[ref.String()] = repoFor(ref.Owner, ref.Name)
		}
	}
	store := &memoryStore{}

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.Workers = 4
	orchestrator.BatchSize = 7

	summary, err := orchestrator.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 36, summary.Loaded)
	require.Equal(t, 4, summary.Failed)
	require.Len(t, store.loaded(), 36)
}

func TestRunEmptyInput(t *testing.T) {
	store := &memoryStore{}
	summary, err := newOrchestrator(&stubFetcher{}, store).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, summary.Total)
	require.Len(t, store.runs, 1)
}

func TestRunLoadsFetchedProjectsWhenInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &stubFetcher{
		repos: map[string]*core.Repository{
			"a/1": repoFor("a", "1"),
			"a/2": repoFor("a", "2"),
			"a/3": repoFor("a", "3"),
		},
		onCall: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	store := &memoryStore{}

	orchestrator := newOrchestrator(fetcher, store)
	orchestrator.BatchSize = 10

	summary, err := orchestrator.Run(ctx, refs("a/1", "a/2", "a/3"))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, summary.Loaded)
	require.Equal(t, []string{"R_a_1", "R_a_2"}, store.loaded())
	require.Len(t, store.runs, 1)
	require.Equal(t, 2, store.runs[0].Loaded)
}

func TestRunRequiresDependencies(t *testing.T) {
	_, err := (&Orchestrator{}).Run(context.Background(), nil)
	require.Error(t, err)
}

func TestRunReportsRecordFailure(t *testing.T) {
	fetcher := &stubFetcher{repos: map[string]*core.Repository{"a/1": repoFor("a", "1")}}
	store := &memoryStore{recordErr: errors.New("read-only")}

	summary, err := newOrchestrator(fetcher, store).Run(context.Background(), refs("a/1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "record run")
	require.Equal(t, 1, summary.Loaded)
}
