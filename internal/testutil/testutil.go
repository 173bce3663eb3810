// Package testutil provides shared test fixtures and assertions for
// plate data: grid builders, float comparisons with tolerance, and a
// few HTTP helpers for the viewer tests.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmam-data/plate.report/internal/analysis"
)

// UniformGrid builds an 8x12 grid with every well set to v.
func UniformGrid(t *testing.T, v float64) analysis.WellGrid {
	t.Helper()
	rows := make([][]float64, analysis.GridRows)
	for r := range rows {
		rows[r] = make([]float64, analysis.GridCols)
		for c := range rows[r] {
			rows[r][c] = v
		}
	}
	return GridFromRows(t, rows)
}

// GridFromRows builds a grid from explicit row data, failing the test
// on a shape error.
func GridFromRows(t *testing.T, rows [][]float64) analysis.WellGrid {
	t.Helper()
	g, err := analysis.NewWellGrid(rows)
	if err != nil {
		t.Fatalf("building grid: %v", err)
	}
	return g
}

// AssertNear checks that got is within tol of want. NaN never matches.
func AssertNear(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("value = %v, want %v (tol %v)", got, want, tol)
	}
}

// AssertNaN checks that v is NaN.
func AssertNaN(t *testing.T, v float64) {
	t.Helper()
	if !math.IsNaN(v) {
		t.Errorf("value = %v, want NaN", v)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
