package charts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmam-data/plate.report/internal/analysis"
)

func resultWith(raw analysis.AnalysisSeries, pct *analysis.AnalysisSeries) analysis.Result {
	return analysis.Result{Raw: raw, Percent: pct}
}

func TestSavePNGWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	if err := SavePNG(chartSeries("P1_AB"), VariantRaw, path, nil); err != nil {
		t.Fatalf("SavePNG failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat plot file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestCollectSectionSkipsNaN(t *testing.T) {
	s := chartSeries("P1_AB")

	// S2 is NaN at 24h, so only the first point survives.
	sp := collectSection(s, "S2")
	if len(sp.xys) != 1 {
		t.Fatalf("S2 point count = %d, want 1", len(sp.xys))
	}
	if sp.xys[0].X != 0 || sp.xys[0].Y != 80 {
		t.Errorf("S2 point = %v", sp.xys[0])
	}
	if len(sp.errs) != len(sp.xys) {
		t.Errorf("error count %d != point count %d", len(sp.errs), len(sp.xys))
	}
}

func TestSaveResultPNGsPerVariant(t *testing.T) {
	dir := t.TempDir()
	raw := chartSeries("P1_AB")
	pct := chartSeries("P1_AB")

	paths, err := SaveResultPNGs(resultWith(raw, &pct), dir, nil)
	if err != nil {
		t.Fatalf("SaveResultPNGs failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("path count = %d, want 2", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing plot file %s: %v", p, err)
		}
	}
	if !strings.HasSuffix(paths[0], "P1_AB_raw.png") {
		t.Errorf("raw plot path = %s", paths[0])
	}
	if !strings.HasSuffix(paths[1], "P1_AB_percent.png") {
		t.Errorf("percent plot path = %s", paths[1])
	}
}

func TestMakePlotOutputDir(t *testing.T) {
	dir := MakePlotOutputDir("plots", "/data/run_20260831.xls")
	if !strings.HasPrefix(dir, filepath.Join("plots", "run_20260831")) {
		t.Errorf("output dir = %s", dir)
	}

	bare := MakePlotOutputDir("plots", "")
	if !strings.HasPrefix(bare, "plots"+string(filepath.Separator)) {
		t.Errorf("bare output dir = %s", bare)
	}
}

func TestSectionColorsDistinct(t *testing.T) {
	colors := sectionColors(6)
	if len(colors) != 6 {
		t.Fatalf("color count = %d, want 6", len(colors))
	}
	seen := make(map[string]bool)
	for _, c := range colors {
		r, g, b, _ := c.RGBA()
		key := fmt.Sprintf("%d,%d,%d", r, g, b)
		if seen[key] {
			t.Fatal("duplicate color in palette")
		}
		seen[key] = true
	}
}
