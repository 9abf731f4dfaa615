package testutil

import (
	"fmt"
	"io"
	"time"

	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
)

// NewTestLogger creates a debug logger that writes JSON to out. A nil out
// discards everything.
func NewTestLogger(out io.Writer) *events.Logger {
	if out == nil {
		out = io.Discard
	}
	return events.NewTestLogger(events.DebugLevel, "json", out)
}

var fixtureTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// Fixture is a named tote scenario.
type Fixture struct {
	Tote          *models.ToteContents
	TotalQuantity int
}

// LoadFixture returns one of the built-in tote scenarios.
func LoadFixture(name string) *Fixture {
	switch name {
	case "empty_tote":
		return &Fixture{
			Tote: &models.ToteContents{ToteID: "tote-empty", Items: []models.ToteItem{}, UpdatedAt: fixtureTime},
		}
	case "large_tote":
		tote := GenerateTote("tote-large", 250)
		total := 0
		for _, item := range tote.Items {
			total += item.Quantity
		}
		return &Fixture{Tote: tote, TotalQuantity: total}
	default:
		return &Fixture{Tote: SampleTote(), TotalQuantity: 10}
	}
}

// SampleTote provides a small mixed tote.
func SampleTote() *models.ToteContents {
	return &models.ToteContents{
		ToteID: "demo-tote-1",
		Items: []models.ToteItem{
			{ID: "1", SKU: "SKU-300", Name: "widget", Quantity: 5},
			{ID: "2", SKU: "SKU-100", Name: "Bracket", Quantity: 2},
			{ID: "3", SKU: "SKU-200", Name: "anchor bolt", Quantity: 3},
		},
		UpdatedAt: fixtureTime,
	}
}

// GenerateTote builds a tote with n items and deterministic quantities.
func GenerateTote(id string, n int) *models.ToteContents {
	items := make([]models.ToteItem, n)
	for i := range items {
		items[i] = models.ToteItem{
			ID:       fmt.Sprintf("%d", i+1),
			SKU:      fmt.Sprintf("SKU-%04d", i+1),
			Name:     fmt.Sprintf("Item %d", i+1),
			Quantity: (i % 7) + 1,
		}
	}
	return &models.ToteContents{ToteID: id, Items: items, UpdatedAt: fixtureTime}
}
