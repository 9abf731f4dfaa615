package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/totescan/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently scanned barcodes",
	Long: `History lists the barcodes kept between runs, most recent first.

Use --migrate-to to copy the list into another storage backend.`,
	Example: `  totescan history
  totescan history --clear
  totescan history --migrate-to sqlite`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyClear     bool
	historyMigrateTo string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVar(&historyClear, "clear", false,
		"Forget all recent barcodes")
	historyCmd.Flags().StringVar(&historyMigrateTo, "migrate-to", "",
		"Copy recent barcodes into another backend (json or sqlite)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyClear {
		apiClient.Scan.ClearHistory()
		printSuccess("Recent barcodes cleared")
		return nil
	}

	if historyMigrateTo != "" {
		target := cfg.History
		target.Backend = historyMigrateTo

		dst, err := storage.New(&target, logger)
		if err != nil {
			return err
		}
		defer dst.Close()

		n, err := storage.Migrate(apiClient.Recent, dst)
		if err != nil {
			return err
		}
		printSuccess("Copied %d barcodes to %s storage", n, historyMigrateTo)
		return nil
	}

	printRecent(apiClient.Scan.RecentBarcodes())
	return nil
}
