package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/core"
	"github.com/namelens/repolens/internal/core/engine"
	"github.com/namelens/repolens/internal/core/store"
	"github.com/namelens/repolens/internal/core/transform"
	"github.com/namelens/repolens/internal/input"
	"github.com/namelens/repolens/internal/observability"
	"github.com/namelens/repolens/internal/output"
)

var fetchLoad bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <owner/name>",
	Short: "Fetch and print one repository",
	Long: `Fetch retrieves a single repository through the request engine and prints the
normalized project. With --load the project is also upserted into the store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := input.ParseRepositoryRef(args[0])
		if err != nil {
			return err
		}
		if _, err := resolveOutputFormat(cmd); err != nil {
			return err
		}

		cfg, err := loadedConfig()
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidConfig, err)
		}
		logger := observability.CLILogger.With(zap.String("repository", ref.String()))

		var (
			observer engine.QuotaObserver
			db       *store.Store
		)
		if fetchLoad {
			db, err = openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() // nolint:errcheck // best-effort cleanup
			observer = db
		}

		fetcher, err := newFetcher(cfg.GitHub, observer, logger)
		if err != nil {
			return err
		}

		repo, err := fetcher.Lookup(cmd.Context(), ref.Owner, ref.Name)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ref, err)
		}
		project, err := transform.Project(repo, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ref, err)
		}

		if db != nil {
			if err := db.UpsertProjects(cmd.Context(), []core.Project{*project}); err != nil {
				return fmt.Errorf("%w: load %s: %w", errStoreUnavailable, ref, err)
			}
			logger.Info("Project loaded", zap.String("id", project.ID))
		}

		return render(cmd, func(f output.Formatter) (string, error) {
			return f.FormatProjects([]core.Project{*project})
		})
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchLoad, "load", false, "upsert the project into the store")
	addOutputFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
