package export

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/cmam-data/plate.report/internal/analysis"
)

// GraphPad Prism XML schema, replicate-table form. Each plate-assay key
// becomes one TwoWay table: rows are timepoints, one YColumn per dose,
// and per-timepoint replicate subcolumns holding the individual well
// readings.

const prismNamespace = "http://graphpad.com/prism/Prism.htm"

type prismFile struct {
	XMLName xml.Name     `xml:"GraphPadPrismFile"`
	Xmlns   string       `xml:"xmlns,attr"`
	Created prismCreated `xml:"Created"`
	Tables  []prismTable `xml:"Table"`
}

type prismCreated struct {
	Original prismVersion `xml:"OriginalVersion"`
}

type prismVersion struct {
	CreatedByProgram string `xml:"CreatedByProgram,attr"`
	CreatedByVersion string `xml:"CreatedByVersion,attr"`
	Login            string `xml:"Login,attr"`
	DateTime         string `xml:"DateTime,attr"`
}

type prismTable struct {
	ID        string         `xml:"ID,attr"`
	XFormat   string         `xml:"XFormat,attr"`
	YFormat   string         `xml:"YFormat,attr"`
	TableType string         `xml:"TableType,attr"`
	Title     string         `xml:"Title"`
	RowTitles prismRowTitles `xml:"RowTitlesColumn"`
	YColumns  []prismYColumn `xml:"YColumn"`
}

type prismRowTitles struct {
	Subcolumn prismSubcolumn `xml:"Subcolumn"`
}

type prismYColumn struct {
	Subcolumns string           `xml:"Subcolumns,attr"`
	Title      string           `xml:"Title"`
	Groups     []prismSubcolumn `xml:"Subcolumn"`
}

type prismSubcolumn struct {
	Values []prismValue `xml:"d"`
}

// prismValue is one <d> cell; a missing replicate is an empty element.
type prismValue struct {
	Text string `xml:",chardata"`
}

// PrismInput is the per-well source data for one plate-assay key.
type PrismInput struct {
	Key      string
	Reads    []analysis.PlateRead
	Include  analysis.Mask
	Sections analysis.SectionSet

	// Doses are the real-dose labels, one per section in definition
	// order. Sections sharing a dose pool their wells into one column.
	Doses []float64
}

// PrismWriter accumulates tables and writes the file at the end.
type PrismWriter struct {
	file prismFile
}

// NewPrismWriter returns a writer stamped with the generating program's
// identity.
func NewPrismWriter(program, version string) *PrismWriter {
	return &PrismWriter{file: prismFile{
		Xmlns: prismNamespace,
		Created: prismCreated{Original: prismVersion{
			CreatedByProgram: program,
			CreatedByVersion: version,
			DateTime:         time.Now().Format(time.RFC3339),
		}},
	}}
}

// AddTable builds the replicate table for one key. Wells that are
// invalid or excluded by the mask are dropped; timepoints keep their
// read order after an ascending sort by hours.
func (p *PrismWriter) AddTable(in PrismInput) error {
	if len(in.Sections) == 0 {
		return fmt.Errorf("prism table %s: no sections", in.Key)
	}
	if len(in.Doses) != len(in.Sections) {
		return fmt.Errorf("prism table %s: %d doses for %d sections", in.Key, len(in.Doses), len(in.Sections))
	}

	reads := make([]analysis.PlateRead, len(in.Reads))
	copy(reads, in.Reads)
	sort.SliceStable(reads, func(i, j int) bool { return reads[i].Hours < reads[j].Hours })

	// Pool section wells by dose, preserving first-seen dose order,
	// then sort the doses ascending for the column order.
	doseWells := make(map[float64][]analysis.Coord)
	doses := make([]float64, 0, len(in.Sections))
	for i, sec := range in.Sections {
		d := in.Doses[i]
		if _, seen := doseWells[d]; !seen {
			doses = append(doses, d)
		}
		doseWells[d] = append(doseWells[d], sec.Wells...)
	}
	sort.Float64s(doses)

	table := prismTable{
		ID:        "Tbl_" + in.Key,
		XFormat:   "none",
		YFormat:   "replicates",
		TableType: "TwoWay",
		Title:     in.Key,
	}
	for _, r := range reads {
		table.RowTitles.Subcolumn.Values = append(table.RowTitles.Subcolumn.Values,
			prismValue{Text: formatFloat(r.Hours)})
	}

	for _, dose := range doses {
		wells := doseWells[dose]

		// Replicate values per timepoint, all padded to the widest.
		perHour := make([][]string, len(reads))
		maxLen := 0
		for i, r := range reads {
			for _, w := range wells {
				if !in.Include[w.Row][w.Col] {
					continue
				}
				v, ok := r.Grid.At(w.Row, w.Col)
				if !ok || math.IsNaN(v) {
					continue
				}
				perHour[i] = append(perHour[i], formatFloat(v))
			}
			if len(perHour[i]) > maxLen {
				maxLen = len(perHour[i])
			}
		}

		ycol := prismYColumn{
			Subcolumns: strconv.Itoa(maxLen),
			Title:      formatFloat(dose),
		}
		for _, vals := range perHour {
			sub := prismSubcolumn{}
			for _, v := range vals {
				sub.Values = append(sub.Values, prismValue{Text: v})
			}
			for len(sub.Values) < maxLen {
				sub.Values = append(sub.Values, prismValue{})
			}
			ycol.Groups = append(ycol.Groups, sub)
		}
		table.YColumns = append(table.YColumns, ycol)
	}

	p.file.Tables = append(p.file.Tables, table)
	return nil
}

// Save marshals the accumulated tables to an indented Prism XML file.
func (p *PrismWriter) Save(path string) error {
	if len(p.file.Tables) == 0 {
		return fmt.Errorf("prism file has no tables")
	}
	data, err := xml.MarshalIndent(&p.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prism XML: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write prism file: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
