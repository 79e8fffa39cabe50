package commands

import (
	"fmt"
	"os"
	"time"

	"sailscrape/internal/landing"
	"sailscrape/internal/model"
	"sailscrape/internal/refdata"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var loadDate *string

func init() {
	loadDate = loadCategoriesCmd.Flags().String("date", "", "Snapshot date (YYYY-MM-DD, default yesterday UTC).")
	rootCmd.AddCommand(migrateCmd, loadCategoriesCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Applies the cabin category table migrations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := rt.database(cmd.Context())
		if err != nil {
			return err
		}
		n, err := refdata.Migrate(cmd.Context(), db, rt.cfg.RefdataDriver)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", n)
		return nil
	},
}

// categoryLine 은 load 입력 파일의 한 줄.
type categoryLine struct {
	ShipCode      string `json:"shipCode"`
	CabinCategory string `json:"cabinCategory"`
}

var loadCategoriesCmd = &cobra.Command{
	Use:   "load-categories <file.jsonl> [--date YYYY-MM-DD]",
	Short: "Loads a cabin category snapshot from newline-delimited JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := time.Now().UTC().AddDate(0, 0, -1)
		if *loadDate != "" {
			d, err := time.Parse("2006-01-02", *loadDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			date = d
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var rows []model.CategoryRow
		for _, rec := range landing.SplitRecords(data, rt.log) {
			var l categoryLine
			if err := json.Unmarshal(rec, &l); err != nil {
				return err
			}
			rows = append(rows, model.CategoryRow{
				ShipCode: model.ShipCode(l.ShipCode),
				Category: model.CabinCategory(l.CabinCategory),
			})
		}

		store, err := rt.refdata(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.Put(cmd.Context(), date, rows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows loaded for %s\n", len(rows), date.Format("2006-01-02"))
		return nil
	},
}
