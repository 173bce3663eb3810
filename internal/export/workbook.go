// Package export writes analysis results to the two formats downstream
// users consume: a multi-sheet Excel workbook of section statistics and
// a GraphPad Prism XML file of per-well replicates.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cmam-data/plate.report/internal/analysis"
)

// Sheet name limits imposed by the xlsx format.
const maxSheetNameLen = 31

// WorkbookBuilder accumulates one sheet per series variant and saves a
// single workbook at the end.
type WorkbookBuilder struct {
	f      *excelize.File
	sheets int
}

// NewWorkbookBuilder returns an empty builder.
func NewWorkbookBuilder() *WorkbookBuilder {
	return &WorkbookBuilder{f: excelize.NewFile()}
}

// AddResult writes the sheets for one key's analysis run: the raw
// series always, plus a percent sheet and a ratio sheet when those
// variants were produced.
func (w *WorkbookBuilder) AddResult(res analysis.Result) error {
	if err := w.addSeries(res.Raw, sheetName(res.Raw.Key, ""), false, false); err != nil {
		return err
	}
	if res.Percent != nil {
		if err := w.addSeries(*res.Percent, sheetName(res.Raw.Key, "pct"), true, false); err != nil {
			return err
		}
	}
	if res.Normalized != nil {
		if err := w.addSeries(*res.Normalized, sheetName(res.Raw.Key, "ratio"), false, true); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the workbook. At least one result must have been added.
func (w *WorkbookBuilder) Save(path string) error {
	if w.sheets == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *WorkbookBuilder) addSeries(s analysis.AnalysisSeries, sheet string, percent, ratio bool) error {
	if w.sheets == 0 {
		// Rename the default sheet instead of leaving an empty one.
		if err := w.f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
	}
	w.sheets++

	names := s.SectionNames()
	header := []interface{}{"Hours"}
	for _, n := range names {
		if percent {
			header = append(header, n+" (%)", n+" Std (%)")
		} else {
			header = append(header, n, n+" Std")
		}
	}
	header = append(header, "Neg Ctrl Avg", "Neg Ctrl Std")
	if err := w.setRow(sheet, 1, header); err != nil {
		return err
	}

	for i, p := range s.Points {
		row := []interface{}{p.Hours}
		for _, n := range names {
			// A timepoint the normalizer could not rebase still carries
			// its raw values; on the ratio sheet those cells stay empty
			// so they cannot be read as ratios.
			if ratio && p.Unnormalizable {
				row = append(row, nil, nil)
				continue
			}
			agg, ok := p.Section(n)
			if !ok {
				row = append(row, nil, nil)
				continue
			}
			row = append(row, cellValue(agg.Mean), cellValue(agg.Err))
		}
		row = append(row, cellValue(p.Control.Mean), cellValue(p.Control.Err))
		if err := w.setRow(sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkbookBuilder) setRow(sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell name: %w", err)
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

// cellValue maps NaN to an empty cell; xlsx has no NaN representation.
func cellValue(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// sheetName joins key and variant suffix, truncating to the xlsx limit
// and dropping characters the format forbids.
func sheetName(key, suffix string) string {
	name := key
	if suffix != "" {
		name = key + " " + suffix
	}
	replacer := strings.NewReplacer("[", "", "]", "", ":", "", "*", "", "?", "", "/", "-", "\\", "-")
	name = replacer.Replace(name)
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	return name
}
