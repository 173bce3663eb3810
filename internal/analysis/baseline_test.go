package analysis

import (
	"math"
	"testing"
)

func mustGrid(t *testing.T, rows [][]float64) WellGrid {
	t.Helper()
	g, err := NewWellGrid(rows)
	if err != nil {
		t.Fatalf("NewWellGrid failed: %v", err)
	}
	return g
}

// Without subtraction the grid passes through untouched and both control
// outputs are NaN, for any mask.
func TestCorrectNoSubtractIsIdentity(t *testing.T) {
	g := mustGrid(t, uniformRows(42))

	out, ctrl := Correct(g, AllWells(), CorrectOptions{Subtract: false})
	if out != g {
		t.Error("grid changed with subtract disabled")
	}
	if !math.IsNaN(ctrl.Mean) || !math.IsNaN(ctrl.Err) {
		t.Errorf("control stats = %+v, want NaN/NaN", ctrl)
	}
	if ctrl.Applied() {
		t.Error("Applied() should be false without subtraction")
	}
}

// An all-zero control mask degrades to the no-subtraction behaviour.
func TestCorrectEmptyControlMaskDegrades(t *testing.T) {
	g := mustGrid(t, uniformRows(42))

	out, ctrl := Correct(g, Mask{}, CorrectOptions{Subtract: true})
	if out != g {
		t.Error("grid changed despite no control wells")
	}
	if !math.IsNaN(ctrl.Mean) || !math.IsNaN(ctrl.Err) || ctrl.Count != 0 {
		t.Errorf("control stats = %+v, want NaN/NaN/0", ctrl)
	}
}

// Control wells whose readings are NaN are skipped; if all controls are
// NaN the correction degrades the same way as an empty mask.
func TestCorrectAllNaNControlsDegrade(t *testing.T) {
	rows := uniformRows(10)
	rows[0][0] = math.NaN()
	rows[0][1] = math.NaN()
	g := mustGrid(t, rows)

	var control Mask
	control[0][0] = true
	control[0][1] = true

	out, ctrl := Correct(g, control, CorrectOptions{Subtract: true})
	if out != g {
		t.Error("grid changed despite no valid control readings")
	}
	if ctrl.Applied() {
		t.Error("baseline applied from NaN-only controls")
	}
}

func TestCorrectSubtractsControlMean(t *testing.T) {
	rows := uniformRows(10)
	rows[7][10] = 2
	rows[7][11] = 4
	g := mustGrid(t, rows)

	var control Mask
	control[7][10] = true
	control[7][11] = true

	out, ctrl := Correct(g, control, CorrectOptions{Subtract: true})
	if ctrl.Mean != 3 {
		t.Errorf("control mean = %v, want 3", ctrl.Mean)
	}
	if ctrl.Err != 1 { // population stddev of {2,4}
		t.Errorf("control err = %v, want 1", ctrl.Err)
	}
	if ctrl.Count != 2 {
		t.Errorf("control count = %d, want 2", ctrl.Count)
	}
	if v, _ := out.At(0, 0); v != 7 {
		t.Errorf("corrected well = %v, want 7", v)
	}
	// The input grid is untouched; correction works on a copy.
	if v, _ := g.At(0, 0); v != 10 {
		t.Errorf("input grid mutated: %v", v)
	}
}

func TestCorrectScaleControlError(t *testing.T) {
	rows := uniformRows(10)
	rows[0][0] = 2
	rows[0][1] = 4
	rows[0][2] = 2
	rows[0][3] = 4
	g := mustGrid(t, rows)

	var control Mask
	control[0][0] = true
	control[0][1] = true
	control[0][2] = true
	control[0][3] = true

	_, ctrl := Correct(g, control, CorrectOptions{Subtract: true, ScaleControlError: true})
	// population stddev 1, scaled by sqrt(4)
	if math.Abs(ctrl.Err-0.5) > 1e-12 {
		t.Errorf("scaled control err = %v, want 0.5", ctrl.Err)
	}
}

func TestCorrectClampNegatives(t *testing.T) {
	rows := uniformRows(10)
	rows[4][4] = 1 // below the baseline
	rows[7][11] = 5
	g := mustGrid(t, rows)

	var control Mask
	control[7][11] = true

	clamped, _ := Correct(g, control, CorrectOptions{Subtract: true, ClampNegatives: true})
	if v, _ := clamped.At(4, 4); v != 0 {
		t.Errorf("clamped value = %v, want 0", v)
	}

	unclamped, _ := Correct(g, control, CorrectOptions{Subtract: true})
	if v, _ := unclamped.At(4, 4); v != -4 {
		t.Errorf("unclamped value = %v, want -4", v)
	}
}

// A control well with a genuine zero reading counts toward the baseline;
// validity, not value, decides membership.
func TestCorrectZeroControlReadingCounts(t *testing.T) {
	rows := uniformRows(10)
	rows[0][0] = 0
	rows[0][1] = 4
	g := mustGrid(t, rows)

	var control Mask
	control[0][0] = true
	control[0][1] = true

	_, ctrl := Correct(g, control, CorrectOptions{Subtract: true})
	if ctrl.Count != 2 || ctrl.Mean != 2 {
		t.Errorf("control stats = %+v, want count 2 mean 2", ctrl)
	}
}
