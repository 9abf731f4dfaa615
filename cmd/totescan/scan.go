package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/services/scan"
	"github.com/TheMichaelB/totescan/internal/view"
)

var scanCmd = &cobra.Command{
	Use:   "scan <tote-id>...",
	Short: "Look up one or more totes",
	Long: `Scan validates each tote id and fetches its contents.

Several ids are fetched concurrently. Repeated ids share one request.`,
	Example: `  totescan scan demo-tote-1
  totescan scan demo-tote-1 demo-tote-2 --sort quantity --desc
  totescan scan demo-tote-1 --filter widget --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

var (
	scanSort   string
	scanDesc   bool
	scanFilter string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanSort, "sort", "s", "name",
		"Sort items by name, sku or quantity")
	scanCmd.Flags().BoolVar(&scanDesc, "desc", false,
		"Sort descending")
	scanCmd.Flags().StringVarP(&scanFilter, "filter", "f", "",
		"Only show items whose name or SKU contains this text")
}

type scanOutcome struct {
	ToteID string               `json:"toteId"`
	Tote   *models.ToteContents `json:"tote,omitempty"`
	Error  *models.FetchError   `json:"error,omitempty"`
	Reason string               `json:"rejected,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	sortState, err := parseSortFlags(scanSort, scanDesc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Batch lookups bypass the interactive cooldown: every id is validated,
	// then scanned directly.
	outcomes := make([]scanOutcome, len(args))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, raw := range args {
		i, raw := i, raw
		g.Go(func() error {
			outcome := scanOutcome{ToteID: models.NormalizeToteID(raw)}

			if result := apiClient.Scan.Validate(raw); !result.Valid {
				outcome.Reason = result.Message()
			} else {
				tote, err := apiClient.Scan.Scan(ctx, raw)
				switch {
				case err == nil:
					outcome.Tote = tote
				case errors.Is(err, context.Canceled):
					return err
				default:
					outcome.Error, _ = models.AsFetchError(err)
					if outcome.Error == nil {
						return err
					}
				}
			}

			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(outcomes)
	}

	failed := 0
	for i, o := range outcomes {
		if i > 0 {
			fmt.Println()
		}
		switch {
		case o.Reason != "":
			failed++
			printWarning("%s: %s", args[i], o.Reason)
		case o.Error != nil:
			failed++
			printError("%s:", o.ToteID)
			printFetchError(o.Error)
		default:
			printTote(o.Tote, sortState, scanFilter)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(args))
	}
	return nil
}

func parseSortFlags(field string, desc bool) (view.SortState, error) {
	f, err := view.ParseSortField(field)
	if err != nil {
		return view.SortState{}, err
	}
	dir := view.Asc
	if desc {
		dir = view.Desc
	}
	return view.SortState{Field: f, Direction: dir}, nil
}

// submitError renders the non-fetch outcomes of an interactive submission.
func submitError(err error) {
	var rejected *scan.RejectedError
	switch {
	case errors.As(err, &rejected):
		printWarning("%s", rejected.Result.Message())
	case errors.Is(err, scan.ErrRateLimited):
		printWarning("Scanning too fast. Please wait a moment.")
	case errors.Is(err, scan.ErrNoLastScan):
		printWarning("Nothing to repeat yet.")
	default:
		printFetchError(err)
	}
}
