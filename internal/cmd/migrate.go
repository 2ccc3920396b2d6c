package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/repolens/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		count, err := db.CountProjects(cmd.Context())
		if err != nil {
			return err
		}
		observability.CLILogger.Info("Store schema is up to date",
			zap.String("driver", db.Driver()),
			zap.String("location", db.Location()),
			zap.Int("projects", count))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
