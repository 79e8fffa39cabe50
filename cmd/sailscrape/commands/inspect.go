package commands

import (
	"bufio"

	"github.com/spf13/cobra"
)

var inspectAction *string

func init() {
	inspectAction = inspectCmd.Flags().String("action", "", "Only objects whose key contains this action (prices-v2, available-suites).")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [prefix] [--action <action>]",
	Short: "Prints every landed JSON record under a key prefix (default: today's partition).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := rt.landing(cmd.Context())
		if err != nil {
			return err
		}

		prefix := store.DatePrefix()
		if len(args) == 1 {
			prefix = args[0]
		}

		records, err := store.Fetch(cmd.Context(), prefix, *inspectAction)
		if err != nil {
			return err
		}

		w := bufio.NewWriter(cmd.OutOrStdout())
		for _, rec := range records {
			_, _ = w.Write(rec)
			_ = w.WriteByte('\n')
		}
		return w.Flush()
	},
}
