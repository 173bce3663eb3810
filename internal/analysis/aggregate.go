package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SectionAggregate is the statistical summary of one section at one
// timepoint. Mean and Err are NaN when no well in the section carried a
// valid, included reading.
type SectionAggregate struct {
	Section string
	Mean    float64
	Err     float64
	Count   int
}

// Aggregate computes per-section mean and standard error of the mean
// over the corrected grid, honouring the inclusion mask. Wells excluded
// by the mask or invalid in the grid are dropped; a genuine zero reading
// is kept.
//
// When a control baseline was subtracted (ctrl.Err is not NaN), section
// noise and control noise are combined as independent sources:
// sqrt(se^2 + ctrlErr^2). Control wells and section wells are disjoint
// in practice, so independence is a fair assumption.
//
// Results depend only on the arguments; calling twice with identical
// inputs yields identical output.
func Aggregate(grid WellGrid, include Mask, sections SectionSet, ctrl ControlStats) []SectionAggregate {
	out := make([]SectionAggregate, 0, len(sections))
	for _, sec := range sections {
		var vals []float64
		for _, w := range sec.Wells {
			if !include[w.Row][w.Col] {
				continue
			}
			if v, ok := grid.At(w.Row, w.Col); ok {
				vals = append(vals, v)
			}
		}

		agg := SectionAggregate{Section: sec.Name, Count: len(vals)}
		if len(vals) == 0 {
			agg.Mean = math.NaN()
			agg.Err = math.NaN()
			out = append(out, agg)
			continue
		}

		agg.Mean = stat.Mean(vals, nil)
		// Sample standard deviation; a single reading has no spread.
		sd := 0.0
		if len(vals) > 1 {
			sd = stat.StdDev(vals, nil)
		}
		se := sd / math.Sqrt(float64(len(vals)))
		if !math.IsNaN(ctrl.Err) {
			se = math.Sqrt(se*se + ctrl.Err*ctrl.Err)
		}
		agg.Err = se
		out = append(out, agg)
	}
	return out
}
