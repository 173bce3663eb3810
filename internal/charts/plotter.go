package charts

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cmam-data/plate.report/internal/analysis"
)

// sectionPoints is the plottable subset of one section's series: the
// timepoints whose aggregate is a real number.
type sectionPoints struct {
	xys  plotter.XYs
	errs plotter.YErrors
}

func collectSection(s analysis.AnalysisSeries, name string) sectionPoints {
	var sp sectionPoints
	for _, p := range s.Points {
		agg, ok := p.Section(name)
		if !ok || math.IsNaN(agg.Mean) {
			continue
		}
		sp.xys = append(sp.xys, plotter.XY{X: p.Hours, Y: agg.Mean})
		e := agg.Err
		if math.IsNaN(e) {
			e = 0
		}
		sp.errs = append(sp.errs, struct{ Low, High float64 }{Low: e, High: e})
	}
	return sp
}

// SavePNG renders one series variant to a PNG: one line per section
// with symmetric error bars, hours on the X axis. labels may be nil.
func SavePNG(s analysis.AnalysisSeries, variant, path string, labels map[string]string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", s.Key, variant)
	p.X.Label.Text = "Hours"
	p.Y.Label.Text = yLabel(variant)

	names := s.SectionNames()
	colors := sectionColors(len(names))

	for i, name := range names {
		sp := collectSection(s, name)
		if len(sp.xys) == 0 {
			continue
		}

		line, points, err := plotter.NewLinePoints(sp.xys)
		if err != nil {
			return fmt.Errorf("section %s: %w", name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		points.Color = colors[i]
		p.Add(line, points)
		p.Legend.Add(labelFor(labels, name), line)

		bars, err := plotter.NewYErrorBars(struct {
			plotter.XYer
			plotter.YErrorer
		}{sp.xys, sp.errs})
		if err != nil {
			return fmt.Errorf("section %s error bars: %w", name, err)
		}
		bars.Color = colors[i]
		p.Add(bars)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// SaveResultPNGs writes one PNG per produced variant into dir, named
// <key>_<variant>.png, and returns the paths written. labels may be
// nil.
func SaveResultPNGs(res analysis.Result, dir string, labels map[string]string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}

	type variant struct {
		name   string
		series *analysis.AnalysisSeries
	}
	variants := []variant{{VariantRaw, &res.Raw}, {VariantPercent, res.Percent}, {VariantRatio, res.Normalized}}

	var paths []string
	for _, v := range variants {
		if v.series == nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", res.Raw.Key, v.name))
		if err := SavePNG(*v.series, v.name, path, labels); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// MakePlotOutputDir builds a timestamped directory path for one run's
// plots: <baseDir>/<source_basename>/<timestamp>.
func MakePlotOutputDir(baseDir, sourceFile string) string {
	ts := time.Now().Format("20060102_150405")
	if sourceFile != "" {
		base := filepath.Base(sourceFile)
		ext := filepath.Ext(base)
		return filepath.Join(baseDir, base[:len(base)-len(ext)], ts)
	}
	return filepath.Join(baseDir, ts)
}

// sectionColors spreads distinct hues over the section count.
func sectionColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.4)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
