package models

import (
	"strings"
	"time"
)

// ToteItem is a single line in a tote's contents.
type ToteItem struct {
	ID       string  `json:"id" validate:"required"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// ToteContents is the backend's answer for one tote id.
// Values are never mutated after decoding; a new scan produces a new value.
type ToteContents struct {
	ToteID    string     `json:"toteId" validate:"required"`
	Items     []ToteItem `json:"items" validate:"dive"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ItemCount returns the number of lines in the tote.
func (t *ToteContents) ItemCount() int {
	if t == nil {
		return 0
	}
	return len(t.Items)
}

// IsEmpty reports whether the tote holds no items.
func (t *ToteContents) IsEmpty() bool {
	return t.ItemCount() == 0
}

// NormalizeToteID trims surrounding whitespace. It is the only normalization
// applied to ids used as cache keys.
func NormalizeToteID(raw string) string {
	return strings.TrimSpace(raw)
}

// ScanHistoryEntry records one completed retrieval attempt.
type ScanHistoryEntry struct {
	ID           string    `json:"id"`
	ToteID       string    `json:"toteId"`
	ScannedAt    time.Time `json:"scannedAt"`
	ItemCount    int       `json:"itemCount"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}
