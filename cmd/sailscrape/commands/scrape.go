package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catalogCmd, pricesCmd, availabilityCmd, allCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Fetches the sailing catalog and lands every raw page.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := rt.fetchCatalog(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d sailings\n", len(entries))
		return nil
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Scrapes prices for every (sail code, fare code) in the catalog.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		entries, err := rt.fetchCatalog(ctx)
		if err != nil {
			return err
		}
		return rt.scrapePrices(ctx, entries)
	},
}

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Scrapes suite availability using the latest cabin category snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		entries, err := rt.fetchCatalog(ctx)
		if err != nil {
			return err
		}
		return rt.scrapeAvailability(ctx, entries)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Fetches the catalog once, then scrapes prices and availability.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		entries, err := rt.fetchCatalog(ctx)
		if err != nil {
			return err
		}
		if err := rt.scrapePrices(ctx, entries); err != nil {
			return err
		}
		return rt.scrapeAvailability(ctx, entries)
	},
}
