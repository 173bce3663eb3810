package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun records one batch analysis: the policies used, the keys
// analyzed, and where the outputs landed.
type AnalysisRun struct {
	ID           int       `json:"id"`
	RunID        string    `json:"run_id"`
	OutputDir    string    `json:"output_dir"`
	WorkbookPath *string   `json:"workbook_path"`
	ChartsPath   *string   `json:"charts_path"`
	Percentage   bool      `json:"percentage"`
	SubtractCtrl bool      `json:"subtract_ctrl"`
	Reference    *string   `json:"reference"`
	PlateKeys    []string  `json:"plate_keys"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRunID generates the identifier for a fresh run.
func NewRunID() string {
	return uuid.NewString()
}

// CreateAnalysisRun creates a new run record in the database.
func (db *DB) CreateAnalysisRun(run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}

	query := `
		INSERT INTO analysis_runs (
			run_id, output_dir, workbook_path, charts_path,
			percentage, subtract_ctrl, reference, plate_keys
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(
		query,
		run.RunID,
		run.OutputDir,
		run.WorkbookPath,
		run.ChartsPath,
		boolToInt(run.Percentage),
		boolToInt(run.SubtractCtrl),
		run.Reference,
		strings.Join(run.PlateKeys, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	run.ID = int(id)
	return nil
}

// GetAnalysisRun retrieves a run by its run_id.
func (db *DB) GetAnalysisRun(runID string) (*AnalysisRun, error) {
	query := `
		SELECT id, run_id, output_dir, workbook_path, charts_path,
		       percentage, subtract_ctrl, reference, plate_keys, created_at
		FROM analysis_runs
		WHERE run_id = ?
	`
	run, err := scanRun(db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return run, nil
}

// RecentAnalysisRuns retrieves the most recent N runs.
func (db *DB) RecentAnalysisRuns(limit int) ([]AnalysisRun, error) {
	query := `
		SELECT id, run_id, output_dir, workbook_path, charts_path,
		       percentage, subtract_ctrl, reference, plate_keys, created_at
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteAnalysisRun deletes a run record by run_id.
func (db *DB) DeleteAnalysisRun(runID string) error {
	result, err := db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("analysis run not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var (
		run        AnalysisRun
		percentage int
		subtract   int
		keys       string
	)
	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.OutputDir,
		&run.WorkbookPath,
		&run.ChartsPath,
		&percentage,
		&subtract,
		&run.Reference,
		&keys,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Percentage = percentage != 0
	run.SubtractCtrl = subtract != 0
	if keys != "" {
		run.PlateKeys = strings.Split(keys, ",")
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
