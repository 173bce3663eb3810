package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConflictsEmptyDB(t *testing.T) {
	db := setupTestDB(t)

	incoming := []WellReading{
		testReading("P1", "AB", 0, 0, 0, 1),
		testReading("P1", "AB", 0, 0, 1, 2),
	}
	report, err := db.FindConflicts(incoming)
	require.NoError(t, err)

	assert.False(t, report.HasConflicts())
	assert.Len(t, report.Clean, 2)
	assert.Empty(t, report.Incoming)
}

func TestFindConflictsPartitionsBatch(t *testing.T) {
	db := setupTestDB(t)

	stored := testReading("P1", "AB", 0, 0, 0, 1.0)
	require.NoError(t, db.InsertReadings([]WellReading{stored}))

	incoming := []WellReading{
		testReading("P1", "AB", 0, 0, 0, 5.0), // same natural key, new value
		testReading("P1", "AB", 0, 0, 1, 2.0), // clean
		testReading("P1", "AB", 24, 0, 0, 3.0), // different hour, clean
	}
	report, err := db.FindConflicts(incoming)
	require.NoError(t, err)

	assert.True(t, report.HasConflicts())
	require.Len(t, report.Incoming, 1)
	require.Len(t, report.Existing, 1)
	assert.Len(t, report.Clean, 2)

	// Existing rows align index-for-index with Incoming.
	assert.Equal(t, 5.0, report.Incoming[0].Value)
	assert.Equal(t, 1.0, report.Existing[0].Value)
	assert.Equal(t, report.Incoming[0].naturalKey(), report.Existing[0].naturalKey())
}

func TestFindConflictsEmptyBatch(t *testing.T) {
	db := setupTestDB(t)

	report, err := db.FindConflicts(nil)
	require.NoError(t, err)
	assert.False(t, report.HasConflicts())
}

func TestDetectInternalDuplicates(t *testing.T) {
	batch := []WellReading{
		testReading("P1", "AB", 0, 0, 0, 1),
		testReading("P1", "AB", 0, 0, 1, 2),
		testReading("P1", "AB", 0, 0, 0, 3), // duplicates the first key
	}

	unique, duplicates := DetectInternalDuplicates(batch)
	require.Len(t, unique, 1)
	assert.Equal(t, 2.0, unique[0].Value)

	// Both contenders for the duplicated key are reported.
	require.Len(t, duplicates, 2)
	assert.Equal(t, 1.0, duplicates[0].Value)
	assert.Equal(t, 3.0, duplicates[1].Value)
}

func TestDetectInternalDuplicatesNoDuplicates(t *testing.T) {
	batch := []WellReading{
		testReading("P1", "AB", 0, 0, 0, 1),
		testReading("P1", "AB", 0, 0, 1, 2),
	}
	unique, duplicates := DetectInternalDuplicates(batch)
	assert.Len(t, unique, 2)
	assert.Empty(t, duplicates)
}
