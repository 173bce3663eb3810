package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ControlStats describes the negative-control baseline computed for one
// timepoint. Mean and Err are NaN when no correction was applied, either
// because subtraction was disabled or because no control well carried a
// valid reading.
type ControlStats struct {
	Mean  float64
	Err   float64
	Count int
}

// Applied reports whether a baseline was actually subtracted.
func (c ControlStats) Applied() bool {
	return !math.IsNaN(c.Mean)
}

// CorrectOptions select the baseline policies that vary by caller.
type CorrectOptions struct {
	// Subtract enables baseline correction at all.
	Subtract bool

	// ClampNegatives forces post-subtraction negatives to zero. The two
	// conventions coexist in the field: clamped values for single-plate
	// previews, unclamped for the batch series pipeline.
	ClampNegatives bool

	// ScaleControlError divides the control spread by sqrt(n), reporting
	// a true standard error of the control mean rather than the raw
	// population spread. The batch pipeline scales; the preview does not.
	ScaleControlError bool
}

// Correct computes the negative-control baseline from grid x control and
// subtracts it from every valid well, returning the corrected grid and
// the baseline statistics.
//
// The control baseline is evaluated against the raw grid, independent of
// the inclusion mask: a well marked both control and excluded still
// contributes to the baseline. Controls are often physically present on
// the plate even when excluded from treatment-section statistics, so
// this is a deliberate contract, not an oversight.
//
// Correct never fails. With Subtract off, or with no valid control
// wells, the grid passes through untouched and both baseline outputs are
// NaN.
func Correct(grid WellGrid, control Mask, opts CorrectOptions) (WellGrid, ControlStats) {
	stats := ControlStats{Mean: math.NaN(), Err: math.NaN()}
	if !opts.Subtract {
		return grid, stats
	}

	var ctrl []float64
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if !control[r][c] {
				continue
			}
			if v, ok := grid.At(r, c); ok {
				ctrl = append(ctrl, v)
			}
		}
	}
	if len(ctrl) == 0 {
		return grid, stats
	}

	stats.Count = len(ctrl)
	stats.Mean = stat.Mean(ctrl, nil)
	stats.Err = stat.PopStdDev(ctrl, nil)
	if opts.ScaleControlError {
		stats.Err /= math.Sqrt(float64(len(ctrl)))
	}

	// Subtract from every valid well; invalid wells stay invalid.
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			v, ok := grid.At(r, c)
			if !ok {
				continue
			}
			v -= stats.Mean
			if opts.ClampNegatives && v < 0 {
				v = 0
			}
			grid.Set(r, c, v)
		}
	}
	return grid, stats
}
