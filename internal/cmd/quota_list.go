package cmd

import (
	"github.com/spf13/cobra"

	"github.com/namelens/repolens/internal/core/store"
	"github.com/namelens/repolens/internal/output"
)

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the last quota snapshot per credential slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := resolveOutputFormat(cmd); err != nil {
			return err
		}
		slot, err := slotFlag(cmd)
		if err != nil {
			return err
		}
		query := store.QuotaQuery{All: slot == nil, Slot: slot}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListQuota(cmd.Context(), query)
		if err != nil {
			return err
		}

		return render(cmd, func(f output.Formatter) (string, error) { return f.FormatQuota(records) })
	},
}

func init() {
	quotaListCmd.Flags().Int("slot", 0, "only show this credential slot")
	addOutputFlags(quotaListCmd)
}
