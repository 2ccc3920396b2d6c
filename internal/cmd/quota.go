package cmd

import "github.com/spf13/cobra"

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect persisted API quota snapshots",
}

func init() {
	quotaCmd.AddCommand(quotaListCmd)
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}

// slotFlag reads --slot when it was set.
func slotFlag(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("slot") {
		return nil, nil
	}
	slot, err := cmd.Flags().GetInt("slot")
	if err != nil {
		return nil, err
	}
	return &slot, nil
}
