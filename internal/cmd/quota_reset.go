package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/namelens/repolens/internal/core/store"
	"github.com/namelens/repolens/internal/output"
)

var (
	quotaResetAll bool
	quotaResetYes bool
)

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored quota snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		slot, err := slotFlag(cmd)
		if err != nil {
			return err
		}

		query := store.QuotaQuery{All: quotaResetAll, Slot: slot}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !quotaResetYes {
			return errors.New("--all requires --yes")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ResetQuota(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		return writeQuotaResetResult(format, sink.writer, deleted)
	},
}

func writeQuotaResetResult(format output.Format, w io.Writer, deleted int64) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{"deleted": deleted}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	_, err := fmt.Fprintf(w, "Deleted %d quota snapshot(s)\n", deleted)
	return err
}

func init() {
	quotaResetCmd.Flags().BoolVar(&quotaResetAll, "all", false, "reset every slot")
	quotaResetCmd.Flags().Int("slot", 0, "reset a single credential slot")
	quotaResetCmd.Flags().BoolVar(&quotaResetYes, "yes", false, "confirm resetting every slot")
	addOutputFlags(quotaResetCmd)
}
