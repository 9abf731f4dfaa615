package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/view"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	dimColor     = color.New(color.Faint)
)

func disableColor() {
	color.NoColor = true
}

func printSuccess(format string, args ...interface{}) {
	successColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warningColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTote renders a tote's items through the current sort and filter.
func printTote(tote *models.ToteContents, sortState view.SortState, filter string) {
	items := sortState.Apply(tote.Items, filter)

	printSuccess("Tote %s", tote.ToteID)
	if !tote.UpdatedAt.IsZero() {
		dimColor.Printf("Updated %s\n", tote.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if len(items) == 0 {
		if tote.IsEmpty() {
			printInfo("Tote is empty")
		} else {
			printInfo("No items match %q", filter)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tNAME\tQTY")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\n", item.SKU, item.Name, item.Quantity)
	}
	w.Flush()

	fmt.Printf("%d items, total quantity %d\n", len(items), view.TotalQuantity(items))
}

// printFetchError shows a failed lookup with a retry hint when it applies.
func printFetchError(err error) {
	fe, ok := models.AsFetchError(err)
	if !ok {
		printError("Error: %v", err)
		return
	}

	printError("%s (%s)", fe.Message, fe.Code)
	if fe.Retryable {
		dimColor.Fprintln(os.Stderr, "This error may be temporary; try again.")
	}
}
