package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/totescan/internal/view"
)

var exportCmd = &cobra.Command{
	Use:   "export <tote-id>",
	Short: "Write a tote's contents to a CSV file",
	Example: `  totescan export demo-tote-1
  totescan export demo-tote-1 --out ./exports --sort quantity`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportDir    string
	exportSort   string
	exportDesc   bool
	exportFilter string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDir, "out", "o", ".",
		"Directory to write the CSV file into")
	exportCmd.Flags().StringVarP(&exportSort, "sort", "s", "name",
		"Sort items by name, sku or quantity")
	exportCmd.Flags().BoolVar(&exportDesc, "desc", false,
		"Sort descending")
	exportCmd.Flags().StringVarP(&exportFilter, "filter", "f", "",
		"Only export items whose name or SKU contains this text")
}

func runExport(cmd *cobra.Command, args []string) error {
	sortState, err := parseSortFlags(exportSort, exportDesc)
	if err != nil {
		return err
	}

	if result := apiClient.Scan.Validate(args[0]); !result.Valid {
		return fmt.Errorf("invalid tote id: %s", result.Message())
	}

	tote, err := apiClient.Scan.Scan(context.Background(), args[0])
	if err != nil {
		printFetchError(err)
		return fmt.Errorf("export %s: lookup failed", args[0])
	}

	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(exportDir, view.CSVFileName(tote.ToteID, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	items := sortState.Apply(tote.Items, exportFilter)
	if err := view.ExportCSV(f, items); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if jsonOutput {
		return printJSON(map[string]interface{}{"path": path, "items": len(items)})
	}
	printSuccess("Wrote %d items to %s", len(items), path)
	return nil
}
