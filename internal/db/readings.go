package db

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cmam-data/plate.report/internal/analysis"
	"github.com/cmam-data/plate.report/internal/units"
)

// WellReading is one persisted measurement: a single well of a single
// plate read. Value is NaN when the instrument produced no reading;
// it is stored as NULL, never coerced to zero.
type WellReading struct {
	FilePath     string  `json:"file_path"`
	Date         string  `json:"date"` // YYYY-MM-DD of the instrument run
	Hour         float64 `json:"hour"`
	Plate        string  `json:"plate"`
	WellName     string  `json:"well_name"` // e.g. "A1"
	WellRow      int     `json:"well_row"`
	WellCol      int     `json:"well_col"`
	Assay        string  `json:"assay"`
	TheoDose     float64 `json:"theo_dose"`
	RealDose     float64 `json:"real_dose"`
	Value        float64 `json:"value"`
	IsNegControl bool    `json:"is_neg_control"`
}

// Key returns the plate-assay key this reading belongs to.
func (r *WellReading) Key() string {
	return r.Plate + "_" + r.Assay
}

// ReadingsFromGrid flattens a grid into per-well rows for persistence.
func ReadingsFromGrid(filePath, date, plate, assay string, hour float64, grid analysis.WellGrid, control analysis.Mask) []WellReading {
	out := make([]WellReading, 0, analysis.GridRows*analysis.GridCols)
	for row := 0; row < analysis.GridRows; row++ {
		for col := 0; col < analysis.GridCols; col++ {
			v, ok := grid.At(row, col)
			if !ok {
				v = math.NaN()
			}
			out = append(out, WellReading{
				FilePath:     filePath,
				Date:         date,
				Hour:         hour,
				Plate:        plate,
				WellName:     units.WellName(row, col),
				WellRow:      row,
				WellCol:      col,
				Assay:        assay,
				Value:        v,
				IsNegControl: control[row][col],
			})
		}
	}
	return out
}

// InsertReadings writes readings with INSERT OR REPLACE semantics: when
// a row with the same natural key exists, the incoming row wins. Run
// FindConflicts first when the user should arbitrate instead.
func (db *DB) InsertReadings(readings []WellReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert readings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO plate_readings (
			file_path, date, hour, plate, well_name, well_row, well_col,
			assay, theo_dose, real_dose, value, is_neg_control, update_datetime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert readings: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format("2006-01-02 15:04:05")
	for _, r := range readings {
		var value interface{}
		if !math.IsNaN(r.Value) {
			value = r.Value
		}
		isCtrl := 0
		if r.IsNegControl {
			isCtrl = 1
		}
		if _, err := stmt.Exec(
			r.FilePath, r.Date, r.Hour, r.Plate, r.WellName, r.WellRow, r.WellCol,
			r.Assay, nullableDose(r.TheoDose), nullableDose(r.RealDose), value, isCtrl, now,
		); err != nil {
			return fmt.Errorf("insert reading %s %s: %w", r.Key(), r.WellName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert readings: %w", err)
	}
	return nil
}

func nullableDose(v float64) interface{} {
	if v == 0 || math.IsNaN(v) {
		return nil
	}
	return v
}

// ListKeys returns the distinct plate-assay keys present, ordered by
// plate then assay.
func (db *DB) ListKeys() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT plate, assay FROM plate_readings ORDER BY plate, assay`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plate keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var plate, assay string
		if err := rows.Scan(&plate, &assay); err != nil {
			return nil, fmt.Errorf("failed to scan plate key: %w", err)
		}
		keys = append(keys, plate+"_"+assay)
	}
	return keys, rows.Err()
}

// ReadsForKey reconstructs the per-timepoint grids for one plate-assay
// key, ordered ascending by hour. Wells missing from storage or stored
// as NULL come back as invalid (NaN) wells.
func (db *DB) ReadsForKey(plate, assay string) ([]analysis.PlateRead, error) {
	rows, err := db.Query(`
		SELECT hour, well_row, well_col, value
		FROM plate_readings
		WHERE plate = ? AND assay = ?
		ORDER BY hour
	`, plate, assay)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for %s_%s: %w", plate, assay, err)
	}
	defer rows.Close()

	type cell struct {
		row, col int
		value    float64
	}
	byHour := make(map[float64][]cell)
	var hours []float64
	for rows.Next() {
		var (
			hour     float64
			row, col int
			value    sql.NullFloat64
		)
		if err := rows.Scan(&hour, &row, &col, &value); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		if _, seen := byHour[hour]; !seen {
			hours = append(hours, hour)
		}
		byHour[hour] = append(byHour[hour], cell{row: row, col: col, value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Float64s(hours)

	reads := make([]analysis.PlateRead, 0, len(hours))
	for _, hour := range hours {
		blank := make([][]float64, analysis.GridRows)
		for r := range blank {
			blank[r] = make([]float64, analysis.GridCols)
			for c := range blank[r] {
				blank[r][c] = math.NaN()
			}
		}
		for _, cl := range byHour[hour] {
			if cl.row >= 0 && cl.row < analysis.GridRows && cl.col >= 0 && cl.col < analysis.GridCols {
				blank[cl.row][cl.col] = cl.value
			}
		}
		grid, err := analysis.NewWellGrid(blank)
		if err != nil {
			return nil, fmt.Errorf("rebuild grid for %s_%s at %vh: %w", plate, assay, hour, err)
		}
		reads = append(reads, analysis.PlateRead{Hours: hour, Grid: grid})
	}
	return reads, nil
}

// DeleteAllReadings removes every stored reading. Use with extreme
// caution; only the 'plates reset' subcommand calls this.
func (db *DB) DeleteAllReadings() error {
	if _, err := db.Exec(`DELETE FROM plate_readings`); err != nil {
		return fmt.Errorf("failed to delete readings: %w", err)
	}
	return nil
}
