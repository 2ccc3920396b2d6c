package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/core/pipeline"
	"github.com/namelens/repolens/internal/input"
	"github.com/namelens/repolens/internal/observability"
	"github.com/namelens/repolens/internal/output"
)

var extractCmd = &cobra.Command{
	Use:   "extract <repositories.csv>",
	Short: "Extract metadata for every repository in a CSV file",
	Long: `Extract reads a CSV with the columns name, num_downloads and owners_and_repo,
fetches each repository from the GitHub GraphQL API and upserts the normalized
projects into the store. Repositories that fail are written to the failure log
and never stop the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	flags := extractCmd.Flags()
	flags.Int("workers", 0, "concurrent fetch workers (overrides extract.workers)")
	flags.Int("batch-size", 0, "projects per store transaction (overrides extract.batch_size)")
	flags.Duration("refresh-after", 0, "skip repositories extracted more recently than this (overrides extract.refresh_after)")
	flags.String("failure-log", "", "JSON lines file for failed repositories (overrides extract.failure_log)")
	flags.Bool("metrics", false, "serve /metrics and /health while the run is active (overrides metrics.enabled)")
	addOutputFlags(extractCmd)

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	extractCfg, metricsCfg := applyExtractFlags(cmd, cfg.Extract, cfg.Metrics)
	if _, err := resolveOutputFormat(cmd); err != nil {
		return err
	}

	logger := observability.CLILogger
	path := args[0]

	reader := &input.Reader{Logger: logger}
	refs, err := reader.ReadRepositoriesFile(path)
	if err != nil {
		return fmt.Errorf("read repositories: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	fetcher, err := newFetcher(cfg.GitHub, db, logger)
	if err != nil {
		return err
	}

	failureLog, closeFailureLog, err := observability.NewFailureLogger(extractCfg.FailureLog)
	if err != nil {
		return err
	}
	defer func() { _ = closeFailureLog() }()

	if metricsCfg.Enabled {
		stopServer := startMetricsServer(metricsCfg, db, logger)
		defer stopServer()
	}

	orchestrator := &pipeline.Orchestrator{
		Fetcher:      fetcher,
		Store:        db,
		Logger:       logger,
		FailureLog:   failureLog,
		Workers:      extractCfg.Workers,
		BatchSize:    extractCfg.BatchSize,
		RefreshAfter: extractCfg.RefreshAfter,
		Source:       filepath.Base(path),
	}

	summary, runErr := orchestrator.Run(ctx, refs)
	if summary != nil {
		if err := render(cmd, func(f output.Formatter) (string, error) { return f.FormatRun(summary) }); err != nil {
			logger.Warn("Failed to render run summary", zap.Error(err))
		}
		if summary.Failed > 0 && extractCfg.FailureLog != "" {
			logger.Info("Failed repositories written to failure log",
				zap.Int("failed", summary.Failed),
				zap.String("path", extractCfg.FailureLog))
		}
	}
	return runErr
}

// applyExtractFlags overlays explicitly set flags onto the configured values.
func applyExtractFlags(cmd *cobra.Command, extract config.ExtractConfig, metricsCfg config.MetricsConfig) (config.ExtractConfig, config.MetricsConfig) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		if v, err := flags.GetInt("workers"); err == nil && v > 0 {
			extract.Workers = v
		}
	}
	if flags.Changed("batch-size") {
		if v, err := flags.GetInt("batch-size"); err == nil && v > 0 {
			extract.BatchSize = v
		}
	}
	if flags.Changed("refresh-after") {
		if v, err := flags.GetDuration("refresh-after"); err == nil && v >= 0 {
			extract.RefreshAfter = v.Truncate(time.Second)
		}
	}
	if flags.Changed("failure-log") {
		if v, err := flags.GetString("failure-log"); err == nil {
			extract.FailureLog = v
		}
	}
	if flags.Changed("metrics") {
		if v, err := flags.GetBool("metrics"); err == nil {
			metricsCfg.Enabled = v
		}
	}
	return extract, metricsCfg
}
