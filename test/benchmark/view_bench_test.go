package benchmark

import (
	"fmt"
	"io"
	"testing"

	"github.com/TheMichaelB/totescan/internal/view"
	"github.com/TheMichaelB/totescan/test/testutil"
)

func BenchmarkSortAndFilter(b *testing.B) {
	sizes := []int{10, 100, 1000}
	fields := []view.SortField{view.SortByName, view.SortBySKU, view.SortByQuantity}

	for _, size := range sizes {
		tote := testutil.GenerateTote("bench", size)

		for _, field := range fields {
			b.Run(fmt.Sprintf("%dItems/%s", size, field), func(b *testing.B) {
				state := view.SortState{Field: field, Direction: view.Desc}

				b.ResetTimer()
				b.ReportAllocs()

				for i := 0; i < b.N; i++ {
					_ = state.Apply(tote.Items, "item 1")
				}
			})
		}
	}
}

func BenchmarkExportCSV(b *testing.B) {
	tote := testutil.GenerateTote("bench", 1000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := view.ExportCSV(io.Discard, tote.Items); err != nil {
			b.Fatal(err)
		}
	}
}
