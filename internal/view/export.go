package view

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/TheMichaelB/totescan/internal/models"
)

var csvHeader = []string{"SKU", "Name", "Quantity"}

// ExportCSV writes one row per item under a SKU,Name,Quantity header.
func ExportCSV(w io.Writer, items []models.ToteItem) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, item := range items {
		row := []string{item.SKU, item.Name, strconv.Itoa(item.Quantity)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", item.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// CSVFileName returns tote-<id>-<YYYY-MM-DD>.csv for the given day.
func CSVFileName(toteID string, day time.Time) string {
	id := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, strings.TrimSpace(toteID))

	return fmt.Sprintf("tote-%s-%s.csv", id, day.Format("2006-01-02"))
}
