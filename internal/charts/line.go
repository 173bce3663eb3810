// Package charts renders analysis series as interactive go-echarts
// pages and as static gonum/plot PNG files.
package charts

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cmam-data/plate.report/internal/analysis"
	"github.com/cmam-data/plate.report/internal/units"
)

// Variant labels used in chart titles and file names.
const (
	VariantRaw     = "raw"
	VariantPercent = "percent"
	VariantRatio   = "ratio"
)

// SectionLabels maps section names to legend labels carrying the dose
// and its unit, "S1 (2 grays)". Sections past the end of the dose list
// keep their bare name.
func SectionLabels(sections analysis.SectionSet, doses []float64, unit string) map[string]string {
	labels := make(map[string]string, len(sections))
	for i, sec := range sections {
		if i < len(doses) {
			labels[sec.Name] = fmt.Sprintf("%s (%g %s)", sec.Name, doses[i], unit)
		} else {
			labels[sec.Name] = sec.Name
		}
	}
	return labels
}

// labelFor falls back to the bare section name when no label map (or no
// entry) was supplied.
func labelFor(labels map[string]string, name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// yLabel returns the axis label for a series variant.
func yLabel(variant string) string {
	switch variant {
	case VariantPercent:
		return "Change vs t0 (%)"
	case VariantRatio:
		return "Ratio to reference"
	default:
		return "Signal"
	}
}

// SeriesLine builds a line chart for one series variant: hours on the
// X axis, one line per section. NaN aggregates become gaps rather than
// zeros. labels may be nil.
func SeriesLine(s analysis.AnalysisSeries, variant string, labels map[string]string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Key, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Key, Subtitle: fmt.Sprintf("%s, %d timepoints", variant, len(s.Points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hours", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: yLabel(variant), NameLocation: "middle", NameGap: 45}),
	)

	x := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		x = append(x, units.FormatHours(p.Hours))
	}
	line.SetXAxis(x)

	for _, name := range s.SectionNames() {
		data := make([]opts.LineData, 0, len(s.Points))
		for _, p := range s.Points {
			agg, ok := p.Section(name)
			if !ok || math.IsNaN(agg.Mean) {
				data = append(data, opts.LineData{Value: nil})
				continue
			}
			data = append(data, opts.LineData{Value: agg.Mean})
		}
		line.AddSeries(labelFor(labels, name), data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
		)
	}
	return line
}

// RenderResultPage writes one HTML page holding the charts for every
// variant an analysis produced. labels may be nil.
func RenderResultPage(w io.Writer, res analysis.Result, labels map[string]string) error {
	page := components.NewPage()
	page.PageTitle = res.Raw.Key

	page.AddCharts(SeriesLine(res.Raw, VariantRaw, labels))
	if res.Percent != nil {
		page.AddCharts(SeriesLine(*res.Percent, VariantPercent, labels))
	}
	if res.Normalized != nil {
		page.AddCharts(SeriesLine(*res.Normalized, VariantRatio, labels))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart page: %w", err)
	}
	return nil
}
