package db

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/cmam-data/plate.report/internal/units"
)

// setupTestDB creates a migrated database in a per-test temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "plates_test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testReading builds one well reading with sensible defaults.
func testReading(plate, assay string, hour float64, row, col int, value float64) WellReading {
	return WellReading{
		FilePath: "testdata/export.xls",
		Date:     "2026-03-14",
		Hour:     hour,
		Plate:    plate,
		WellName: units.WellName(row, col),
		WellRow:  row,
		WellCol:  col,
		Assay:    assay,
		Value:    value,
	}
}

// noReading is a reading without a value, the persisted form of an
// invalid well.
func noReading(plate, assay string, hour float64, row, col int) WellReading {
	r := testReading(plate, assay, hour, row, col, math.NaN())
	return r
}
