package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/TheMichaelB/totescan/internal/storage"
	"github.com/TheMichaelB/totescan/test/testutil"
)

func BenchmarkRecentStoreSave(b *testing.B) {
	backends := map[string]func(dir string) (storage.RecentStore, error){
		"json": func(dir string) (storage.RecentStore, error) {
			return storage.NewJSONStore(filepath.Join(dir, "recent.json"), testutil.NewTestLogger(nil))
		},
		"sqlite": func(dir string) (storage.RecentStore, error) {
			return storage.NewSQLiteStore(filepath.Join(dir, "recent.db"), testutil.NewTestLogger(nil))
		},
	}

	barcodes := make([]string, 10)
	for i := range barcodes {
		barcodes[i] = fmt.Sprintf("tote-%03d", i)
	}

	for name, open := range backends {
		b.Run(name, func(b *testing.B) {
			store, err := open(b.TempDir())
			if err != nil {
				b.Fatal(err)
			}
			defer store.Close()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if err := store.Save(barcodes); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
