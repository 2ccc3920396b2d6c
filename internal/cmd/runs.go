package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/namelens/repolens/internal/output"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded extraction runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent extraction runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsLimit < 1 {
			return errors.New("--limit must be >= 1")
		}
		if _, err := resolveOutputFormat(cmd); err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		runs, err := db.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		return render(cmd, func(f output.Formatter) (string, error) { return f.FormatRuns(runs) })
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")
	addOutputFlags(runsListCmd)
	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}
