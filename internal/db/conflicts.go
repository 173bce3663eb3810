package db

import (
	"database/sql"
	"fmt"
	"math"
)

// naturalKey is the composite primary key of plate_readings.
type naturalKey struct {
	Date  string
	Hour  float64
	Plate string
	Row   int
	Col   int
	Assay string
}

func (r *WellReading) naturalKey() naturalKey {
	return naturalKey{
		Date:  r.Date,
		Hour:  r.Hour,
		Plate: r.Plate,
		Row:   r.WellRow,
		Col:   r.WellCol,
		Assay: r.Assay,
	}
}

// ConflictReport partitions an incoming batch against the stored data:
// rows that can be inserted cleanly, rows whose natural key already
// exists, and the corresponding stored rows (index-aligned with
// Incoming) so a caller can show both sides before deciding.
type ConflictReport struct {
	Clean    []WellReading
	Incoming []WellReading
	Existing []WellReading
}

// HasConflicts reports whether user arbitration is needed.
func (c *ConflictReport) HasConflicts() bool {
	return len(c.Incoming) > 0
}

// FindConflicts checks each incoming reading against the stored rows by
// natural key. It only reads; resolution happens via InsertReadings
// (incoming wins) or by dropping the conflicting rows from the batch.
func (db *DB) FindConflicts(incoming []WellReading) (*ConflictReport, error) {
	report := &ConflictReport{}
	if len(incoming) == 0 {
		return report, nil
	}

	stmt, err := db.Prepare(`
		SELECT file_path, date, hour, plate, well_name, well_row, well_col,
		       assay, theo_dose, real_dose, value, is_neg_control
		FROM plate_readings
		WHERE date = ? AND hour = ? AND plate = ? AND well_row = ? AND well_col = ? AND assay = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare conflict query: %w", err)
	}
	defer stmt.Close()

	for _, r := range incoming {
		existing, found, err := scanExisting(stmt.QueryRow(r.Date, r.Hour, r.Plate, r.WellRow, r.WellCol, r.Assay))
		if err != nil {
			return nil, err
		}
		if found {
			report.Incoming = append(report.Incoming, r)
			report.Existing = append(report.Existing, existing)
		} else {
			report.Clean = append(report.Clean, r)
		}
	}
	return report, nil
}

func scanExisting(row *sql.Row) (WellReading, bool, error) {
	var (
		r        WellReading
		filePath sql.NullString
		theoDose sql.NullFloat64
		realDose sql.NullFloat64
		value    sql.NullFloat64
		isCtrl   int
	)
	err := row.Scan(&filePath, &r.Date, &r.Hour, &r.Plate, &r.WellName, &r.WellRow, &r.WellCol,
		&r.Assay, &theoDose, &realDose, &value, &isCtrl)
	if err == sql.ErrNoRows {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("failed to scan existing reading: %w", err)
	}

	r.FilePath = filePath.String
	r.TheoDose = theoDose.Float64
	r.RealDose = realDose.Float64
	r.Value = math.NaN()
	if value.Valid {
		r.Value = value.Float64
	}
	r.IsNegControl = isCtrl != 0
	return r, true, nil
}

// DetectInternalDuplicates splits an incoming batch into rows with a
// unique natural key and rows sharing a key with another incoming row.
// Every row of a duplicated key lands in the duplicate partition, so the
// caller sees all contenders, mirroring the conflict dialog's behaviour
// for within-file duplicates.
func DetectInternalDuplicates(incoming []WellReading) (unique, duplicates []WellReading) {
	counts := make(map[naturalKey]int, len(incoming))
	for i := range incoming {
		counts[incoming[i].naturalKey()]++
	}
	for _, r := range incoming {
		if counts[r.naturalKey()] > 1 {
			duplicates = append(duplicates, r)
		} else {
			unique = append(unique, r)
		}
	}
	return unique, duplicates
}
