package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/core"
	"github.com/namelens/repolens/internal/core/transform"
	"github.com/namelens/repolens/internal/metrics"
)

// Default batch settings.
const (
	DefaultWorkers   = 1
	DefaultBatchSize = 50
)

// ErrRepositoryUnavailable marks a repository the fetcher could not return.
// The fetcher has already logged the cause.
var ErrRepositoryUnavailable = errors.New("repository unavailable")

// Fetcher retrieves repository metadata. *extractor.RepositoryFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, owner, name string) (*core.Repository, bool)
}

// Store persists extracted projects and run history. *store.Store implements it.
type Store interface {
	UpsertProjects(ctx context.Context, projects []core.Project) error
	LastExtracted(ctx context.Context, owner, name string) (*time.Time, error)
	RecordRun(ctx context.Context, run core.RunSummary) error
}

// Orchestrator runs fetch, transform and load over a list of repositories.
type Orchestrator struct {
	Fetcher Fetcher
	Store   Store
	Logger  *zap.Logger

	// FailureLog receives one entry per repository that could not be loaded.
	FailureLog *zap.Logger

	Workers      int
	BatchSize    int
	RefreshAfter time.Duration
	Source       string
	Clock        func() time.Time
	NewID        func() string
}

type outcome struct {
	ref     core.RepositoryRef
	project *core.Project
	stage   string
	err     error
}

// Run processes refs and returns the run summary. Repositories that cannot be
// fetched or transformed are counted as failed and never abort the run; a
// store failure does.
func (o *Orchestrator) Run(ctx context.Context, refs []core.RepositoryRef) (*core.RunSummary, error) {
	if o == nil || o.Fetcher == nil || o.Store == nil {
		return nil, errors.New("orchestrator is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	summary := &core.RunSummary{
		ID:        o.newID(),
		Source:    o.Source,
		StartedAt: o.now(),
		Total:     len(refs),
	}
	logger := o.logger().With(zap.String("run_id", summary.ID))
	logger.Info("Starting extraction run",
		zap.Int("repositories", len(refs)),
		zap.Int("workers", o.workers()),
		zap.Int("batch_size", o.batchSize()))

	pending, err := o.filterFresh(ctx, logger, refs, summary)
	if err != nil {
		return o.finish(ctx, logger, summary, err)
	}

	err = o.process(ctx, logger, pending, summary)
	return o.finish(ctx, logger, summary, err)
}

func (o *Orchestrator) filterFresh(ctx context.Context, logger *zap.Logger, refs []core.RepositoryRef, summary *core.RunSummary) ([]core.RepositoryRef, error) {
	if o.RefreshAfter <= 0 {
		return refs, nil
	}

	now := o.now()
	pending := make([]core.RepositoryRef, 0, len(refs))
	for _, ref := range refs {
		last, err := o.Store.LastExtracted(ctx, ref.Owner, ref.Name)
		if err != nil {
			metrics.RecordStoreError("last_extracted")
			return nil, fmt.Errorf("check freshness of %s: %w", ref, err)
		}
		if last != nil && now.Sub(*last) < o.RefreshAfter {
			summary.Skipped++
			metrics.RecordRepository(string(core.StatusSkipped))
			logger.Debug("Skipping recently extracted repository",
				zap.Stringer("repository", ref),
				zap.Time("last_extracted_at", *last))
			continue
		}
		pending = append(pending, ref)
	}
	return pending, nil
}

func (o *Orchestrator) process(ctx context.Context, logger *zap.Logger, refs []core.RepositoryRef, summary *core.RunSummary) error {
	if len(refs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan core.RepositoryRef)
	results := make(chan outcome)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for ref := range jobs {
			if ctx.Err() != nil {
				return
			}
			out := o.extractOne(ctx, ref)
			if ctx.Err() != nil {
				return
			}
			select {
			case results <- out:
			case <-ctx.Done():
				return
			}
		}
	}

	workers := o.workers()
	if workers > len(refs) {
		workers = len(refs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		defer close(jobs)
		for _, ref := range refs {
			select {
			case <-ctx.Done():
				return
			case jobs <- ref:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		batch    []core.Project
		storeErr error
	)
	flush := func(ctx context.Context) {
		if len(batch) == 0 || storeErr != nil {
			return
		}
		if err := o.Store.UpsertProjects(ctx, batch); err != nil {
			metrics.RecordStoreError("upsert_projects")
			storeErr = fmt.Errorf("load batch of %d projects: %w", len(batch), err)
			cancel()
			return
		}
		summary.Loaded += len(batch)
		for range batch {
			metrics.RecordRepository(string(core.StatusLoaded))
		}
		logger.Info("Loaded batch", zap.Int("projects", len(batch)), zap.Int("loaded", summary.Loaded))
		batch = nil
	}

	for out := range results {
		if out.err != nil {
			o.recordFailure(logger, summary, out)
			continue
		}
		batch = append(batch, *out.project)
		if len(batch) >= o.batchSize() && ctx.Err() == nil {
			flush(ctx)
		}
	}
	// projects fetched before an interrupt are still loaded
	flush(context.WithoutCancel(ctx))

	if storeErr != nil {
		return storeErr
	}
	return ctx.Err()
}

func (o *Orchestrator) extractOne(ctx context.Context, ref core.RepositoryRef) outcome {
	repo, ok := o.Fetcher.Fetch(ctx, ref.Owner, ref.Name)
	if !ok {
		return outcome{ref: ref, stage: "fetch", err: ErrRepositoryUnavailable}
	}
	project, err := transform.Project(repo, o.now())
	if err != nil {
		return outcome{ref: ref, stage: "transform", err: err}
	}
	return outcome{ref: ref, project: project}
}

func (o *Orchestrator) recordFailure(logger *zap.Logger, summary *core.RunSummary, out outcome) {
	summary.Failed++
	summary.Failures = append(summary.Failures, out.ref.String())
	metrics.RecordRepository(string(core.StatusFailed))

	logger.Warn("Repository skipped after failure",
		zap.Stringer("repository", out.ref),
		zap.String("stage", out.stage),
		zap.Error(out.err))

	if o.FailureLog != nil {
		o.FailureLog.Error("repository extraction failed",
			zap.String("run_id", summary.ID),
			zap.String("owner", out.ref.Owner),
			zap.String("name", out.ref.Name),
			zap.String("stage", out.stage),
			zap.Error(out.err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, summary *core.RunSummary, runErr error) (*core.RunSummary, error) {
	summary.FinishedAt = o.now()
	sort.Strings(summary.Failures)

	// the run is recorded even when the caller's context was cancelled
	if err := o.Store.RecordRun(context.WithoutCancel(ctx), *summary); err != nil {
		metrics.RecordStoreError("record_run")
		logger.Error("Failed to record run", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("record run: %w", err)
		}
	}

	fields := []zap.Field{
		zap.Int("total", summary.Total),
		zap.Int("loaded", summary.Loaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration()),
	}
	if runErr != nil {
		logger.Error("Extraction run aborted", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	logger.Info("Extraction run finished", fields...)
	return summary, nil
}

func (o *Orchestrator) workers() int {
	if o.Workers < 1 {
		return DefaultWorkers
	}
	return o.Workers
}

func (o *Orchestrator) batchSize() int {
	if o.BatchSize < 1 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock().UTC()
	}
	return time.Now().UTC()
}
