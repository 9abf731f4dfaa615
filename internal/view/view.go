// Package view derives presentation data from a tote's item list. Every
// function returns new slices and leaves its input untouched.
package view

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/TheMichaelB/totescan/internal/models"
)

// SortField selects the item attribute to order by.
type SortField string

const (
	SortByName     SortField = "name"
	SortBySKU      SortField = "sku"
	SortByQuantity SortField = "quantity"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSortField validates a user-supplied field name.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByName, SortBySKU, SortByQuantity:
		return f, nil
	default:
		return "", fmt.Errorf("invalid sort field: %s", s)
	}
}

// ParseDirection validates a user-supplied direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Asc, Desc:
		return d, nil
	default:
		return "", fmt.Errorf("invalid sort direction: %s", s)
	}
}

// Sort returns items ordered by field. The sort is stable; strings compare
// with locale-aware collation and quantities numerically.
func Sort(items []models.ToteItem, field SortField, dir Direction) []models.ToteItem {
	out := make([]models.ToteItem, len(items))
	copy(out, items)

	cmp := comparator(field)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})

	return out
}

func comparator(field SortField) func(a, b models.ToteItem) int {
	switch field {
	case SortByQuantity:
		return func(a, b models.ToteItem) int { return a.Quantity - b.Quantity }
	case SortBySKU:
		col := collate.New(language.English)
		return func(a, b models.ToteItem) int { return col.CompareString(a.SKU, b.SKU) }
	default:
		col := collate.New(language.English)
		return func(a, b models.ToteItem) int { return col.CompareString(a.Name, b.Name) }
	}
}

// Filter keeps items whose name or SKU contains text, case-insensitively.
// Empty text keeps every item.
func Filter(items []models.ToteItem, text string) []models.ToteItem {
	needle := strings.ToLower(strings.TrimSpace(text))

	out := make([]models.ToteItem, 0, len(items))
	for _, item := range items {
		if needle == "" ||
			strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.SKU), needle) {
			out = append(out, item)
		}
	}
	return out
}

// TotalQuantity sums item quantities.
func TotalQuantity(items []models.ToteItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// SortState is the active sort selection.
type SortState struct {
	Field     SortField
	Direction Direction
}

// DefaultSortState orders by name, ascending.
func DefaultSortState() SortState {
	return SortState{Field: SortByName, Direction: Asc}
}

// Toggle flips the direction when field is already active, otherwise
// switches to field ascending.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field == field {
		if s.Direction == Asc {
			return SortState{Field: field, Direction: Desc}
		}
		return SortState{Field: field, Direction: Asc}
	}
	return SortState{Field: field, Direction: Asc}
}

// Apply filters then sorts items.
func (s SortState) Apply(items []models.ToteItem, filter string) []models.ToteItem {
	return Sort(Filter(items, filter), s.Field, s.Direction)
}
