package analysis

import "sort"

// TimePoint is the aggregate record for one plate read: elapsed hours,
// the control baseline that was subtracted (NaN fields when none was),
// and one aggregate per section.
//
// Sections preserve definition order; use Section to look one up by
// name. Unnormalizable is only set by NormalizeToReference, on
// timepoints whose reference value was NaN or zero.
type TimePoint struct {
	Hours          float64
	Control        ControlStats
	Sections       []SectionAggregate
	Unnormalizable bool
}

// Section returns the aggregate for the named section, if present.
func (tp *TimePoint) Section(name string) (SectionAggregate, bool) {
	for _, s := range tp.Sections {
		if s.Section == name {
			return s, true
		}
	}
	return SectionAggregate{}, false
}

// AnalysisSeries is the ordered per-timepoint record for one plate-assay
// key. A built series is never mutated; the normalizers return fresh
// copies so the raw, percent, and reference-normalized variants can
// coexist.
type AnalysisSeries struct {
	Key    string
	Points []TimePoint
}

// BuildSeries orders the timepoints ascending by hours. The sort is
// stable, so callers that supply unique hours per key (the normal case)
// get a fully deterministic order. Zero timepoints yields an empty
// series, not an error.
func BuildSeries(key string, points []TimePoint) AnalysisSeries {
	s := AnalysisSeries{Key: key, Points: make([]TimePoint, len(points))}
	copy(s.Points, points)
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Hours < s.Points[j].Hours
	})
	return s
}

// SectionNames returns the section order of the first timepoint, the
// canonical column order for exports and charts.
func (s *AnalysisSeries) SectionNames() []string {
	if len(s.Points) == 0 {
		return nil
	}
	names := make([]string, len(s.Points[0].Sections))
	for i, sec := range s.Points[0].Sections {
		names[i] = sec.Section
	}
	return names
}

// clone deep-copies the series so a normalizer can rewrite aggregates
// without touching its input.
func (s *AnalysisSeries) clone() AnalysisSeries {
	out := AnalysisSeries{Key: s.Key, Points: make([]TimePoint, len(s.Points))}
	for i, p := range s.Points {
		cp := p
		cp.Sections = make([]SectionAggregate, len(p.Sections))
		copy(cp.Sections, p.Sections)
		out.Points[i] = cp
	}
	return out
}
