package analysis

import "fmt"

// PlateRead is one raw input to the engine: a grid read at a given
// elapsed time for the plate-assay under analysis.
type PlateRead struct {
	Hours float64
	Grid  WellGrid
}

// Options select the policies for one engine run. The zero value means:
// no baseline subtraction, no normalization.
type Options struct {
	SubtractControl   bool
	ClampNegatives    bool
	ScaleControlError bool

	// Percent enables the percent-of-first-timepoint series.
	Percent bool

	// Reference names the section used for ratio normalization; empty
	// disables that series. By convention the first section.
	Reference string

	// ExactRatioError propagates reference uncertainty in the ratio
	// series (see RatioOptions).
	ExactRatioError bool
}

// Result carries the raw series and whichever normalized variants were
// requested. The variants are computed from the same raw series and are
// independent of each other.
type Result struct {
	Raw        AnalysisSeries
	Percent    *AnalysisSeries
	Normalized *AnalysisSeries
}

// Analyze runs the full engine for one plate-assay key: per timepoint in
// ascending hours, baseline-correct then aggregate; assemble the series;
// then apply the requested normalizations.
//
// Masks and sections are read-only snapshots for the duration of the
// call; the engine holds no state between calls. Reads for different
// keys are independent, so callers may analyze keys in any order.
func Analyze(key string, reads []PlateRead, masks MaskSet, sections SectionSet, opts Options) (Result, error) {
	if err := sections.Validate(); err != nil {
		return Result{}, fmt.Errorf("analyze %s: %w", key, err)
	}

	points := make([]TimePoint, 0, len(reads))
	for _, read := range reads {
		corrected, ctrl := Correct(read.Grid, masks.Control, CorrectOptions{
			Subtract:          opts.SubtractControl,
			ClampNegatives:    opts.ClampNegatives,
			ScaleControlError: opts.ScaleControlError,
		})
		points = append(points, TimePoint{
			Hours:    read.Hours,
			Control:  ctrl,
			Sections: Aggregate(corrected, masks.Include, sections, ctrl),
		})
	}

	res := Result{Raw: BuildSeries(key, points)}
	if opts.Percent {
		pct := NormalizePercent(res.Raw)
		res.Percent = &pct
	}
	if opts.Reference != "" {
		norm, err := NormalizeToReference(res.Raw, opts.Reference, RatioOptions{ExactError: opts.ExactRatioError})
		if err != nil {
			return Result{}, fmt.Errorf("analyze %s: %w", key, err)
		}
		res.Normalized = &norm
	}
	return res, nil
}
