package analysis

import (
	"math"
	"testing"
)

func seriesPoint(hours float64, means map[string]float64, errs map[string]float64) TimePoint {
	tp := TimePoint{Hours: hours, Control: noControl()}
	for _, name := range []string{"S1", "S2", "S3"} {
		m, ok := means[name]
		if !ok {
			continue
		}
		tp.Sections = append(tp.Sections, SectionAggregate{
			Section: name,
			Mean:    m,
			Err:     errs[name],
			Count:   4,
		})
	}
	return tp
}

func TestNormalizePercentBasic(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 50, "S2": 200}, map[string]float64{"S1": 5, "S2": 10}),
		seriesPoint(24, map[string]float64{"S1": 75, "S2": 100}, map[string]float64{"S1": 5, "S2": 10}),
	})

	out := NormalizePercent(s)

	s1, _ := out.Points[1].Section("S1")
	if math.Abs(s1.Mean-50) > 1e-12 { // (75/50 - 1) * 100
		t.Errorf("S1 percent = %v, want 50", s1.Mean)
	}
	if math.Abs(s1.Err-10) > 1e-12 { // (5/50) * 100
		t.Errorf("S1 percent err = %v, want 10", s1.Err)
	}

	s2, _ := out.Points[1].Section("S2")
	if math.Abs(s2.Mean-(-50)) > 1e-12 { // (100/200 - 1) * 100
		t.Errorf("S2 percent = %v, want -50", s2.Mean)
	}

	// First timepoint rebases to zero change.
	first, _ := out.Points[0].Section("S1")
	if first.Mean != 0 {
		t.Errorf("first timepoint percent = %v, want 0", first.Mean)
	}
}

// A zero baseline poisons the whole section's percentage series, even
// timepoints with non-zero values.
func TestNormalizePercentZeroBaselinePoisonsSection(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 0, "S2": 100}, map[string]float64{"S1": 1, "S2": 1}),
		seriesPoint(24, map[string]float64{"S1": 80, "S2": 120}, map[string]float64{"S1": 1, "S2": 1}),
		seriesPoint(48, map[string]float64{"S1": 90, "S2": 140}, map[string]float64{"S1": 1, "S2": 1}),
	})

	out := NormalizePercent(s)

	for i, p := range out.Points {
		s1, _ := p.Section("S1")
		if !math.IsNaN(s1.Mean) || !math.IsNaN(s1.Err) {
			t.Errorf("point %d S1 = %+v, want NaN/NaN", i, s1)
		}
	}
	// The healthy section is unaffected.
	s2, _ := out.Points[1].Section("S2")
	if math.Abs(s2.Mean-20) > 1e-12 {
		t.Errorf("S2 percent = %v, want 20", s2.Mean)
	}
}

// Baselines are matched by section name, so a point whose sections
// arrive in a different order still rebases each section against its
// own baseline.
func TestNormalizePercentMatchesSectionsByName(t *testing.T) {
	later := TimePoint{Hours: 24, Control: noControl(), Sections: []SectionAggregate{
		{Section: "S2", Mean: 100, Err: 10, Count: 4},
		{Section: "S1", Mean: 75, Err: 5, Count: 4},
	}}
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 50, "S2": 200}, map[string]float64{"S1": 5, "S2": 10}),
		later,
	})

	out := NormalizePercent(s)

	s1, _ := out.Points[1].Section("S1")
	if math.Abs(s1.Mean-50) > 1e-12 { // (75/50 - 1) * 100, against S1's baseline
		t.Errorf("S1 percent = %v, want 50", s1.Mean)
	}
	s2, _ := out.Points[1].Section("S2")
	if math.Abs(s2.Mean-(-50)) > 1e-12 { // (100/200 - 1) * 100
		t.Errorf("S2 percent = %v, want -50", s2.Mean)
	}
}

// A section with no first-timepoint baseline has nothing to rebase
// against and becomes NaN.
func TestNormalizePercentSectionMissingFromBaseline(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 50}, map[string]float64{"S1": 5}),
		seriesPoint(24, map[string]float64{"S1": 75, "S2": 100}, map[string]float64{"S1": 5, "S2": 10}),
	})

	out := NormalizePercent(s)
	s2, _ := out.Points[1].Section("S2")
	if !math.IsNaN(s2.Mean) || !math.IsNaN(s2.Err) {
		t.Errorf("baseline-less S2 = %+v, want NaN/NaN", s2)
	}
}

func TestNormalizePercentNaNBaselinePoisonsSection(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": math.NaN(), "S2": 100}, map[string]float64{"S1": math.NaN(), "S2": 1}),
		seriesPoint(24, map[string]float64{"S1": 80, "S2": 120}, map[string]float64{"S1": 2, "S2": 1}),
	})

	out := NormalizePercent(s)
	s1, _ := out.Points[1].Section("S1")
	if !math.IsNaN(s1.Mean) {
		t.Errorf("S1 percent = %v, want NaN", s1.Mean)
	}
}

// Control fields are not percent-normalized.
func TestNormalizePercentControlPassthrough(t *testing.T) {
	p := seriesPoint(0, map[string]float64{"S1": 50}, map[string]float64{"S1": 5})
	p.Control = ControlStats{Mean: 3, Err: 0.5, Count: 4}
	s := BuildSeries("P1_AB", []TimePoint{p})

	out := NormalizePercent(s)
	if out.Points[0].Control != p.Control {
		t.Errorf("control stats changed: %+v", out.Points[0].Control)
	}
}

func TestNormalizePercentDoesNotMutateInput(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 50}, map[string]float64{"S1": 5}),
		seriesPoint(24, map[string]float64{"S1": 75}, map[string]float64{"S1": 5}),
	})

	_ = NormalizePercent(s)
	got, _ := s.Points[1].Section("S1")
	if got.Mean != 75 {
		t.Errorf("input series mutated: %v", got.Mean)
	}
}

func TestNormalizeToReferenceBasic(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 2, "S2": 6}, map[string]float64{"S1": 0.2, "S2": 0.6}),
	})

	out, err := NormalizeToReference(s, "S1", RatioOptions{})
	if err != nil {
		t.Fatalf("NormalizeToReference failed: %v", err)
	}

	s1, _ := out.Points[0].Section("S1")
	if s1.Mean != 1.0 {
		t.Errorf("reference mean = %v, want 1", s1.Mean)
	}
	if math.Abs(s1.Err-0.1) > 1e-12 { // 0.2 / 2
		t.Errorf("reference err = %v, want 0.1", s1.Err)
	}

	s2, _ := out.Points[0].Section("S2")
	if s2.Mean != 3 {
		t.Errorf("S2 ratio = %v, want 3", s2.Mean)
	}
	if math.Abs(s2.Err-0.3) > 1e-12 { // 0.6 / 2
		t.Errorf("S2 ratio err = %v, want 0.3", s2.Err)
	}
}

// Degeneracy is per timepoint: a zero reference at one timepoint leaves
// that timepoint unnormalized but does not touch its neighbours.
func TestNormalizeToReferencePerTimepointDegeneracy(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 2, "S2": 4}, map[string]float64{"S1": 0.1, "S2": 0.1}),
		seriesPoint(24, map[string]float64{"S1": 0, "S2": 5}, map[string]float64{"S1": 0.1, "S2": 0.1}),
		seriesPoint(48, map[string]float64{"S1": 4, "S2": 8}, map[string]float64{"S1": 0.1, "S2": 0.1}),
	})

	out, err := NormalizeToReference(s, "S1", RatioOptions{})
	if err != nil {
		t.Fatalf("NormalizeToReference failed: %v", err)
	}

	if out.Points[0].Unnormalizable || out.Points[2].Unnormalizable {
		t.Error("healthy timepoints marked unnormalizable")
	}
	if !out.Points[1].Unnormalizable {
		t.Error("degenerate timepoint not marked unnormalizable")
	}

	// Timepoint 1 keeps its prior-stage values.
	s2, _ := out.Points[1].Section("S2")
	if s2.Mean != 5 {
		t.Errorf("degenerate timepoint S2 = %v, want 5 (unchanged)", s2.Mean)
	}

	// Timepoints 0 and 2 are normalized.
	first, _ := out.Points[0].Section("S2")
	if first.Mean != 2 {
		t.Errorf("timepoint 0 S2 ratio = %v, want 2", first.Mean)
	}
	last, _ := out.Points[2].Section("S2")
	if last.Mean != 2 {
		t.Errorf("timepoint 2 S2 ratio = %v, want 2", last.Mean)
	}
}

func TestNormalizeToReferenceExactError(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 2, "S2": 6}, map[string]float64{"S1": 0.2, "S2": 0.6}),
	})

	out, err := NormalizeToReference(s, "S1", RatioOptions{ExactError: true})
	if err != nil {
		t.Fatalf("NormalizeToReference failed: %v", err)
	}

	s2, _ := out.Points[0].Section("S2")
	// sqrt((0.6/2)^2 + (6*0.2/4)^2) = sqrt(0.09 + 0.09)
	want := math.Sqrt(0.18)
	if math.Abs(s2.Err-want) > 1e-12 {
		t.Errorf("exact ratio err = %v, want %v", s2.Err, want)
	}
}

func TestNormalizeToReferenceUnknownSection(t *testing.T) {
	s := BuildSeries("P1_AB", []TimePoint{
		seriesPoint(0, map[string]float64{"S1": 2}, map[string]float64{"S1": 0.1}),
	})

	if _, err := NormalizeToReference(s, "S9", RatioOptions{}); err == nil {
		t.Error("expected error for unknown reference section")
	}
}

func TestNormalizeEmptySeries(t *testing.T) {
	s := BuildSeries("P1_AB", nil)

	if out := NormalizePercent(s); len(out.Points) != 0 {
		t.Errorf("percent of empty series has %d points", len(out.Points))
	}
	out, err := NormalizeToReference(s, "S1", RatioOptions{})
	if err != nil {
		t.Fatalf("NormalizeToReference on empty series failed: %v", err)
	}
	if len(out.Points) != 0 {
		t.Errorf("ratio of empty series has %d points", len(out.Points))
	}
}
