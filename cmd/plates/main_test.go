package main

import (
	"testing"

	"github.com/cmam-data/plate.report/internal/config"
)

// The batch exports report the control baseline as a true standard
// error, stddev/√n. Only the viewer's preview uses the raw deviation.
func TestBatchOptionsScaleControlError(t *testing.T) {
	opts := batchOptions(config.Empty())
	if !opts.ScaleControlError {
		t.Error("batch options must scale the control error to stddev/sqrt(n)")
	}
}

func TestBatchOptionsFollowConfigDefaults(t *testing.T) {
	opts := batchOptions(config.Empty())
	if !opts.SubtractControl {
		t.Error("control subtraction should default on")
	}
	if opts.ClampNegatives {
		t.Error("negative clamping should default off")
	}
	if !opts.Percent {
		t.Error("percent series should default on")
	}
	if opts.Reference != "S1" {
		t.Errorf("reference = %q, want S1", opts.Reference)
	}
}

func TestStripDBPath(t *testing.T) {
	dbPath, rest := stripDBPath([]string{"up", "--db-path", "other.db", "extra"})
	if dbPath != "other.db" {
		t.Errorf("dbPath = %q, want other.db", dbPath)
	}
	if len(rest) != 2 || rest[0] != "up" || rest[1] != "extra" {
		t.Errorf("rest = %v", rest)
	}

	dbPath, rest = stripDBPath([]string{"status"})
	if dbPath != "plate_data.db" {
		t.Errorf("default dbPath = %q", dbPath)
	}
	if len(rest) != 1 || rest[0] != "status" {
		t.Errorf("rest = %v", rest)
	}
}

func TestSplitKey(t *testing.T) {
	plate, assay, err := splitKey("P1_AB")
	if err != nil || plate != "P1" || assay != "AB" {
		t.Errorf("splitKey(P1_AB) = %q, %q, %v", plate, assay, err)
	}
	if _, _, err := splitKey("noseparator"); err == nil {
		t.Error("expected error for key without separator")
	}
}
