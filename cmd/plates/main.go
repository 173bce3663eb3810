// Command plates ingests spectrophotometer workbooks into SQLite, runs
// the section analysis for every stored plate-assay key, and writes the
// results as an Excel workbook, chart pages, and optional Prism XML and
// PNG plots. With -serve it also hosts the interactive chart viewer.
//
// Usage:
//
//	plates [flags] <workbook.xls> [more.xls ...]
//	plates migrate <up|down|status|force> [args]
//	plates reset [--db-path <file>]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cmam-data/plate.report/internal/analysis"
	"github.com/cmam-data/plate.report/internal/charts"
	"github.com/cmam-data/plate.report/internal/config"
	"github.com/cmam-data/plate.report/internal/db"
	"github.com/cmam-data/plate.report/internal/export"
	"github.com/cmam-data/plate.report/internal/monitoring"
	"github.com/cmam-data/plate.report/internal/spectro"
	"github.com/cmam-data/plate.report/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to settings JSON file")
	dbFile     = flag.String("db", "plate_data.db", "Path to the SQLite database file")
	outDir     = flag.String("out", "analysis_output", "Directory for analysis outputs")
	runDate    = flag.String("date", "", "Instrument run date as YYYY-MM-DD (default: today)")
	onConflict = flag.String("on-conflict", "fail", "What to do when incoming rows collide with stored ones: fail, skip, or overwrite")
	writePrism = flag.Bool("prism", false, "Also write a GraphPad Prism XML file")
	writePNGs  = flag.Bool("pngs", false, "Also write static PNG plots")
	serve      = flag.Bool("serve", false, "Serve the chart viewer after the batch run")
	listen     = flag.String("listen", ":8080", "Chart viewer listen address")
	exactRatio = flag.Bool("exact-ratio-error", false, "Propagate reference uncertainty exactly in the ratio series")
	debugLog   = flag.Bool("debug", false, "Log per-well diagnostic detail")
)

func main() {
	// The migrate and reset subcommands have their own argument handling
	// and must be dispatched before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		dbPath, args := stripDBPath(os.Args[2:])
		db.RunMigrateCommand(args, dbPath)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "reset" {
		dbPath, _ := stripDBPath(os.Args[2:])
		db.RunResetCommand(dbPath)
		return
	}

	flag.Parse()

	log.Printf("plates %s", version.String())

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	monitoring.SetDebug(*debugLog || cfg.GetDebugLog())

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	date := *runDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	inputs := flag.Args()
	for _, path := range inputs {
		if err := ingestWorkbook(database, cfg, path, date); err != nil {
			log.Fatalf("Failed to ingest %s: %v", path, err)
		}
		cfg.AddRecentFile(path)
	}
	if *configPath != "" && len(inputs) > 0 {
		if err := cfg.Save(*configPath); err != nil {
			monitoring.Logf("failed to update recent files: %v", err)
		}
	}

	keys, err := database.ListKeys()
	if err != nil {
		log.Fatalf("Failed to list plate keys: %v", err)
	}
	if len(keys) == 0 {
		log.Println("No readings stored; nothing to analyze")
	} else if err := runAnalysis(database, cfg, keys); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if !*serve {
		return
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		viewer := charts.NewWebServer(*listen, database, cfg)
		if err := viewer.Start(ctx); err != nil {
			log.Printf("chart viewer error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// stripDBPath pulls an optional --db-path <file> pair out of subcommand
// arguments, returning the path (or its default) and the rest.
func stripDBPath(args []string) (string, []string) {
	dbPath := "plate_data.db"
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--db-path" {
			dbPath = args[i+1]
			args = append(args[:i:i], args[i+2:]...)
			break
		}
	}
	return dbPath, args
}

// ingestWorkbook parses one instrument export and persists its wells,
// applying the configured conflict policy first.
func ingestWorkbook(database *db.DB, cfg *config.Config, path, date string) error {
	records, err := spectro.ParseWorkbook(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no plate blocks found")
	}
	monitoring.Logf("parsed %d plate reads from %s", len(records), path)

	sections := cfg.SectionSet()
	var incoming []db.WellReading
	for _, rec := range records {
		key := rec.Key()
		masks, err := cfg.MaskSetFor(key)
		if err != nil {
			return err
		}
		rows := db.ReadingsFromGrid(filepath.Base(path), date, rec.Plate, rec.Assay, rec.Hours, rec.Grid, masks.Control)
		applyDoses(rows, sections, cfg.DosesFor(key, len(sections)))
		incoming = append(incoming, rows...)
	}

	incoming, duplicates := db.DetectInternalDuplicates(incoming)
	if len(duplicates) > 0 {
		monitoring.Logf("dropping %d duplicated rows within %s", len(duplicates), path)
	}

	report, err := database.FindConflicts(incoming)
	if err != nil {
		return err
	}
	if report.HasConflicts() {
		switch *onConflict {
		case "overwrite":
			monitoring.Logf("overwriting %d stored rows that conflict with %s", len(report.Incoming), path)
			incoming = append(report.Clean, report.Incoming...)
		case "skip":
			monitoring.Logf("skipping %d incoming rows that conflict with stored data", len(report.Incoming))
			incoming = report.Clean
		default:
			return fmt.Errorf("%d rows conflict with stored data (rerun with -on-conflict=skip or -on-conflict=overwrite)", len(report.Incoming))
		}
	}

	return database.InsertReadings(incoming)
}

// applyDoses stamps each well row with the dose of the section holding
// that well. Wells outside every section keep a zero dose.
func applyDoses(rows []db.WellReading, sections analysis.SectionSet, doses []float64) {
	doseAt := make(map[analysis.Coord]float64)
	for i, sec := range sections {
		for _, w := range sec.Wells {
			doseAt[w] = doses[i]
		}
	}
	for i := range rows {
		rows[i].RealDose = doseAt[analysis.Coord{Row: rows[i].WellRow, Col: rows[i].WellCol}]
	}
}

// batchOptions builds the engine options for the batch run. The batch
// exports carry the control baseline's true standard error, stddev/√n;
// only the viewer's single-plate preview reports the raw deviation.
func batchOptions(cfg *config.Config) analysis.Options {
	return analysis.Options{
		SubtractControl:   cfg.GetSubtractNegCtrl(),
		ClampNegatives:    cfg.GetClampNegatives(),
		ScaleControlError: true,
		Percent:           cfg.GetUsePercentage(),
		Reference:         cfg.GetReferenceSection(),
		ExactRatioError:   *exactRatio,
	}
}

// runAnalysis analyzes every stored key and writes the batch outputs.
func runAnalysis(database *db.DB, cfg *config.Config, keys []string) error {
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	sections := cfg.SectionSet()
	opts := batchOptions(cfg)

	plotDir := ""
	if *writePNGs {
		plotDir = charts.MakePlotOutputDir(filepath.Join(*outDir, "plots"), "")
	}

	workbook := export.NewWorkbookBuilder()
	prism := export.NewPrismWriter("plates", version.Version)

	for _, key := range keys {
		plate, assay, err := splitKey(key)
		if err != nil {
			return err
		}
		reads, err := database.ReadsForKey(plate, assay)
		if err != nil {
			return err
		}
		masks, err := cfg.MaskSetFor(key)
		if err != nil {
			return err
		}

		res, err := analysis.Analyze(key, reads, masks, sections, opts)
		if err != nil {
			return err
		}
		monitoring.Logf("analyzed %s: %d timepoints", key, len(res.Raw.Points))

		labels := charts.SectionLabels(sections, cfg.DosesFor(key, len(sections)), cfg.GetSectionUnits())

		if err := workbook.AddResult(res); err != nil {
			return err
		}
		if err := writeChartPage(res, filepath.Join(*outDir, key+".html"), labels); err != nil {
			return err
		}
		if *writePrism {
			err := prism.AddTable(export.PrismInput{
				Key:      key,
				Reads:    reads,
				Include:  masks.Include,
				Sections: sections,
				Doses:    cfg.DosesFor(key, len(sections)),
			})
			if err != nil {
				return err
			}
		}
		if *writePNGs {
			if _, err := charts.SaveResultPNGs(res, plotDir, labels); err != nil {
				return err
			}
		}
	}

	workbookPath := filepath.Join(*outDir, "all_results.xlsx")
	if err := workbook.Save(workbookPath); err != nil {
		return err
	}
	log.Printf("Wrote %s", workbookPath)

	if *writePrism {
		p := filepath.Join(*outDir, "all_results.pzfx")
		if err := prism.Save(p); err != nil {
			return err
		}
		log.Printf("Wrote %s", p)
	}

	ref := opts.Reference
	chartsDir := *outDir
	run := &db.AnalysisRun{
		RunID:        db.NewRunID(),
		OutputDir:    *outDir,
		WorkbookPath: &workbookPath,
		ChartsPath:   &chartsDir,
		Percentage:   opts.Percent,
		SubtractCtrl: opts.SubtractControl,
		Reference:    &ref,
		PlateKeys:    keys,
	}
	if err := database.CreateAnalysisRun(run); err != nil {
		return err
	}
	monitoring.Logf("recorded analysis run %s", run.RunID)
	return nil
}

func writeChartPage(res analysis.Result, path string, labels map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart page: %w", err)
	}
	defer f.Close()
	return charts.RenderResultPage(f, res, labels)
}

func splitKey(key string) (plate, assay string, err error) {
	for i := 0; i < len(key); i++ {
		if key[i] == '_' {
			return key[:i], key[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed plate key %q", key)
}
