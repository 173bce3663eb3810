package analysis

import (
	"fmt"
	"math"
)

// NormalizePercent rebases every section onto its own first-timepoint
// mean, expressing later values as percent change from that baseline:
// (v/b - 1) * 100. Errors are rescaled by the same divisor,
// (se/b) * 100, a first-order propagation that ignores the baseline's
// own uncertainty.
//
// A NaN or exactly-zero baseline poisons the entire section: every
// timepoint of that section becomes NaN, not just the first. A
// percentage series with no usable origin has no usable points.
// Baselines are matched to later aggregates by section name, so the
// per-timepoint section order does not matter; a section absent from
// the first timepoint has no baseline and is poisoned the same way.
//
// Control statistics pass through unchanged; they are not rebased.
func NormalizePercent(s AnalysisSeries) AnalysisSeries {
	out := s.clone()
	if len(out.Points) == 0 {
		return out
	}

	base := make(map[string]float64, len(out.Points[0].Sections))
	for _, agg := range out.Points[0].Sections {
		base[agg.Section] = agg.Mean
	}

	for pi := range out.Points {
		for si := range out.Points[pi].Sections {
			agg := &out.Points[pi].Sections[si]
			b, ok := base[agg.Section]
			if !ok || math.IsNaN(b) || b == 0 {
				agg.Mean = math.NaN()
				agg.Err = math.NaN()
				continue
			}
			agg.Err = agg.Err / b * 100
			agg.Mean = (agg.Mean/b - 1) * 100
		}
	}
	return out
}

// RatioOptions tune the ratio-to-reference policy.
type RatioOptions struct {
	// ExactError propagates the reference's own uncertainty into each
	// ratio, se = sqrt((se_v/r)^2 + (v*se_r/r^2)^2), instead of the
	// legacy denominator-only rescale se_v/r. Off by default for parity
	// with previously published numbers.
	ExactError bool
}

// NormalizeToReference divides every section's value at each timepoint
// by the reference section's mean at that same timepoint. The reference
// section itself becomes 1.0 with its relative error se_r/r.
//
// Degeneracy is per timepoint, the opposite granularity from
// NormalizePercent: a timepoint whose reference mean is NaN or zero
// keeps its unnormalized values and is marked Unnormalizable, while
// earlier and later timepoints with a usable reference are still
// normalized.
//
// An unknown reference name is a caller bug and is rejected.
func NormalizeToReference(s AnalysisSeries, reference string, opts RatioOptions) (AnalysisSeries, error) {
	out := s.clone()
	if len(out.Points) > 0 {
		if _, ok := out.Points[0].Section(reference); !ok {
			return AnalysisSeries{}, fmt.Errorf("reference section %q not in series %q", reference, s.Key)
		}
	}

	for pi := range out.Points {
		p := &out.Points[pi]
		refAgg, _ := p.Section(reference)
		ref := refAgg.Mean
		if math.IsNaN(ref) || ref == 0 {
			p.Unnormalizable = true
			continue
		}

		for si := range p.Sections {
			agg := &p.Sections[si]
			if agg.Section == reference {
				agg.Err = agg.Err / ref
				agg.Mean = 1.0
				continue
			}
			if opts.ExactError {
				a := agg.Err / ref
				b := agg.Mean * refAgg.Err / (ref * ref)
				agg.Err = math.Sqrt(a*a + b*b)
			} else {
				agg.Err = agg.Err / ref
			}
			agg.Mean = agg.Mean / ref
		}
	}
	return out, nil
}
