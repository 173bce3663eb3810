// Package spectro reads spectrophotometer export workbooks into plate
// grids. The instrument writes one block per plate read: a header row
// whose first cell starts with "Plate" and whose second cell carries the
// "P<n>_<assay>_<elapsed>" identifier, two header rows, then eight data
// rows with twelve readings in columns 2..13, terminated by "~End".
package spectro

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/extrame/xls"

	"github.com/cmam-data/plate.report/internal/analysis"
	"github.com/cmam-data/plate.report/internal/monitoring"
	"github.com/cmam-data/plate.report/internal/units"
)

// PlateRecord is one parsed plate read: the plate-assay identity, the
// elapsed time in hours, and the 8x12 grid.
type PlateRecord struct {
	Plate string
	Assay string
	Hours float64
	Grid  analysis.WellGrid
}

// Key returns the plate-assay key this record belongs to.
func (r *PlateRecord) Key() string {
	return r.Plate + "_" + r.Assay
}

var (
	plateRe = regexp.MustCompile(`(?i)(P\d+)`)
	assayRe = regexp.MustCompile(`(?i)(?:^|_)(AB|ROS)(?:_|$)`)
	hoursRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)([hm])`)
)

// Header is the parsed form of a plate block identifier.
type Header struct {
	Plate string
	Assay string
	Hours float64
}

// ParseHeader extracts plate number, assay type, and elapsed hours from
// an identifier such as "P3_ROS_48h" or "p1_ab_30m". Minutes convert to
// hours.
func ParseHeader(label string) (Header, error) {
	var h Header

	m := plateRe.FindStringSubmatch(label)
	if m == nil {
		return h, fmt.Errorf("no plate number in %q", label)
	}
	h.Plate = strings.ToUpper(m[1])

	m = assayRe.FindStringSubmatch(label)
	if m == nil {
		return h, fmt.Errorf("no assay type in %q", label)
	}
	h.Assay = strings.ToUpper(m[1])

	m = hoursRe.FindStringSubmatch(label)
	if m == nil {
		return h, fmt.Errorf("no elapsed time in %q", label)
	}
	hours, err := units.ParseElapsed(m[1] + m[2])
	if err != nil {
		return h, fmt.Errorf("elapsed time in %q: %w", label, err)
	}
	h.Hours = hours
	return h, nil
}

// ParseWorkbook reads every complete plate block from an XLS export.
// Blocks with unparseable headers or fewer than 96 readings are skipped
// with a log line; a workbook yielding zero records is an error.
func ParseWorkbook(path string) ([]PlateRecord, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	var records []PlateRecord
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		records = append(records, parseRows(sheetCells(sheet), path)...)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no complete plate blocks in %s", path)
	}
	return records, nil
}

// sheetCells flattens a worksheet into a string grid.
func sheetCells(sheet *xls.WorkSheet) [][]string {
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		row := sheet.Row(r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows
}

// parseRows walks the cell grid block by block. Separated from the xls
// reader so the block format can be tested without fixture files.
func parseRows(rows [][]string, source string) []PlateRecord {
	var records []PlateRecord

	cell := func(r, c int) string {
		if r >= len(rows) || c >= len(rows[r]) {
			return ""
		}
		return strings.TrimSpace(rows[r][c])
	}

	i := 0
	for i < len(rows) {
		if !strings.HasPrefix(cell(i, 0), "Plate") {
			i++
			continue
		}

		label := cell(i, 1)
		header, err := ParseHeader(label)
		if err != nil {
			monitoring.Logf("spectro: %s: skipping block at row %d: %v", source, i, err)
			// Still need to advance past the block body.
		}

		var readings []float64
		j := i + 2 // skip the two header rows
		for j < len(rows) && cell(j, 0) != "~End" {
			rowVals := make([]float64, analysis.GridCols)
			blank := true
			for c := 0; c < analysis.GridCols; c++ {
				rowVals[c] = parseReading(cell(j, c+2))
				if !math.IsNaN(rowVals[c]) {
					blank = false
				}
			}
			// Fully blank rows are spacing, not data.
			if !blank {
				readings = append(readings, rowVals...)
			}
			j++
		}
		i = j + 1

		if err != nil {
			continue
		}
		if len(readings) != analysis.GridRows*analysis.GridCols {
			monitoring.Logf("spectro: %s: skipping incomplete plate %q (%d of %d readings)",
				source, label, len(readings), analysis.GridRows*analysis.GridCols)
			continue
		}

		grid, err := gridFromFlat(readings)
		if err != nil {
			monitoring.Logf("spectro: %s: skipping plate %q: %v", source, label, err)
			continue
		}
		records = append(records, PlateRecord{
			Plate: header.Plate,
			Assay: header.Assay,
			Hours: header.Hours,
			Grid:  grid,
		})
	}
	return records
}

// parseReading converts one cell to a reading. Empty and non-numeric
// cells become NaN, the engine's "no reading" value.
func parseReading(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func gridFromFlat(flat []float64) (analysis.WellGrid, error) {
	rows := make([][]float64, analysis.GridRows)
	for r := range rows {
		rows[r] = flat[r*analysis.GridCols : (r+1)*analysis.GridCols]
	}
	return analysis.NewWellGrid(rows)
}

// GroupByKey orders records into per-key read lists ready for the
// engine, preserving encounter order of keys.
func GroupByKey(records []PlateRecord) (keys []string, byKey map[string][]analysis.PlateRead) {
	byKey = make(map[string][]analysis.PlateRead)
	for _, rec := range records {
		k := rec.Key()
		if _, seen := byKey[k]; !seen {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], analysis.PlateRead{Hours: rec.Hours, Grid: rec.Grid})
	}
	return keys, byKey
}
