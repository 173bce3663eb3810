// Package analysis implements the plate section statistics and
// normalization engine: baseline correction against negative-control
// wells, per-section aggregation with error propagation, time-series
// assembly, and the two series normalization policies (percent of
// first timepoint, ratio to a reference section).
//
// All computation is pure and in-memory. Degenerate data (empty
// sections, missing controls, zero or NaN baselines) propagates as NaN
// through the series and never aborts a run; only shape and coordinate
// contract violations return errors.
package analysis

import (
	"fmt"
	"math"
)

// Plate geometry for the standard 96-well instrument grid.
const (
	GridRows = 8
	GridCols = 12
)

// WellGrid holds one plate read: an 8x12 grid of measurements with a
// parallel validity mask. A well is invalid when the instrument produced
// no reading (NaN in the source data) or when a processing step excluded
// it. Keeping validity separate from the value means a genuine 0.0
// reading survives aggregation instead of being confused with "excluded".
type WellGrid struct {
	values [GridRows][GridCols]float64
	valid  [GridRows][GridCols]bool
}

// NewWellGrid builds a grid from row-major readings. The input must be
// exactly 8 rows of 12 values; anything else is a caller bug and is
// rejected rather than truncated. NaN readings are stored as invalid.
func NewWellGrid(readings [][]float64) (WellGrid, error) {
	var g WellGrid
	if len(readings) != GridRows {
		return g, fmt.Errorf("well grid must have %d rows, got %d", GridRows, len(readings))
	}
	for r, row := range readings {
		if len(row) != GridCols {
			return g, fmt.Errorf("well grid row %d must have %d columns, got %d", r, GridCols, len(row))
		}
		for c, v := range row {
			g.values[r][c] = v
			g.valid[r][c] = !math.IsNaN(v)
		}
	}
	return g, nil
}

// At returns the reading at (row, col) and whether it is valid.
func (g *WellGrid) At(row, col int) (float64, bool) {
	return g.values[row][col], g.valid[row][col]
}

// Set stores a reading at (row, col). NaN marks the well invalid.
func (g *WellGrid) Set(row, col int, v float64) {
	g.values[row][col] = v
	g.valid[row][col] = !math.IsNaN(v)
}

// ValidCount returns the number of wells carrying a usable reading.
func (g *WellGrid) ValidCount() int {
	n := 0
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if g.valid[r][c] {
				n++
			}
		}
	}
	return n
}

// Mask is an 8x12 boolean well selector. The zero value selects nothing.
type Mask [GridRows][GridCols]bool

// NewMaskFromInts builds a mask from an 8x12 grid of 0/1 flags, the form
// masks take in config files and the database.
func NewMaskFromInts(flags [][]int) (Mask, error) {
	var m Mask
	if len(flags) != GridRows {
		return m, fmt.Errorf("mask must have %d rows, got %d", GridRows, len(flags))
	}
	for r, row := range flags {
		if len(row) != GridCols {
			return m, fmt.Errorf("mask row %d must have %d columns, got %d", r, GridCols, len(row))
		}
		for c, f := range row {
			m[r][c] = f != 0
		}
	}
	return m, nil
}

// AllWells returns a mask selecting the whole plate.
func AllWells() Mask {
	var m Mask
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			m[r][c] = true
		}
	}
	return m
}

// Count returns the number of selected wells.
func (m *Mask) Count() int {
	n := 0
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if m[r][c] {
				n++
			}
		}
	}
	return n
}

// MaskSet pairs the two masks shared across all timepoints of one
// plate-assay: which wells contribute to section statistics, and which
// wells are negative controls. The two are independent: a well may be
// excluded from sections and still feed the control baseline.
type MaskSet struct {
	Include Mask
	Control Mask
}

// Coord addresses one well, 0-indexed.
type Coord struct {
	Row int
	Col int
}

// SectionDefinition is a named, arbitrary subset of well coordinates
// aggregated as one statistical unit. Sections need not partition the
// plate; a well in several sections is counted in each.
type SectionDefinition struct {
	Name  string
	Wells []Coord
}

// Validate rejects coordinates outside the plate. Out-of-bounds sections
// are caller bugs; silently clipping them would corrupt the statistics
// downstream.
func (s *SectionDefinition) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("section must have a name")
	}
	if len(s.Wells) == 0 {
		return fmt.Errorf("section %q has no wells", s.Name)
	}
	for _, w := range s.Wells {
		if w.Row < 0 || w.Row >= GridRows || w.Col < 0 || w.Col >= GridCols {
			return fmt.Errorf("section %q: well (%d,%d) outside %dx%d grid", s.Name, w.Row, w.Col, GridRows, GridCols)
		}
	}
	return nil
}

// RectSection builds a section covering the inclusive rectangle from
// (r1,c1) to (r2,c2), the shape sections take in practice (quadrants and
// column bands of the plate).
func RectSection(name string, r1, c1, r2, c2 int) SectionDefinition {
	s := SectionDefinition{Name: name}
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			s.Wells = append(s.Wells, Coord{Row: r, Col: c})
		}
	}
	return s
}

// SectionSet is the ordered list of sections for one plate-assay.
type SectionSet []SectionDefinition

// Validate checks every section and rejects duplicate names.
func (ss SectionSet) Validate() error {
	seen := make(map[string]bool, len(ss))
	for i := range ss {
		if err := ss[i].Validate(); err != nil {
			return err
		}
		if seen[ss[i].Name] {
			return fmt.Errorf("duplicate section name %q", ss[i].Name)
		}
		seen[ss[i].Name] = true
	}
	return nil
}

// Names returns the section names in definition order.
func (ss SectionSet) Names() []string {
	names := make([]string, len(ss))
	for i := range ss {
		names[i] = ss[i].Name
	}
	return names
}

// DefaultSections is the conventional six-quadrant layout: the plate
// split into two rows of three 4x4 blocks, named S1..S6.
func DefaultSections() SectionSet {
	return SectionSet{
		RectSection("S1", 0, 0, 3, 3),
		RectSection("S2", 0, 4, 3, 7),
		RectSection("S3", 0, 8, 3, 11),
		RectSection("S4", 4, 0, 7, 3),
		RectSection("S5", 4, 4, 7, 7),
		RectSection("S6", 4, 8, 7, 11),
	}
}
