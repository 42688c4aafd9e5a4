package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

func report(runID string, started time.Time) model.SuiteReport {
	return model.SuiteReport{
		SuiteOutcome: model.SuiteOutcome{
			RunID:   runID,
			Result:  model.SuitePassed,
			Passes:  5,
			Tally:   model.Tally{Rows: 20, PositionFailures: 2},
			Started: started,
		},
		ShadeID:     4242,
		ShadeName:   "RoboTest",
		FirmwareRev: "2.1.19",
		RigMode:     model.RigSingle,
		Sequence:    []string{"Open", "Mid", "Closed", "Mid"},
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(report("run-a", started)))

	got, err := s.Load("run-a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", got.RunID)
	assert.Equal(t, model.SuitePassed, got.Result)
	assert.Equal(t, 2, got.Tally.PositionFailures)
	assert.True(t, started.Equal(got.Started))
	assert.Equal(t, []string{"Open", "Mid", "Closed", "Mid"}, got.Sequence)
}

func TestList_OrderedByStart(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(report("zzz", base)))
	require.NoError(t, s.Save(report("aaa", base.Add(time.Hour))))

	reports, err := s.List()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "zzz", reports[0].RunID)
	assert.Equal(t, "aaa", reports[1].RunID)
}

func TestList_Empty(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	reports, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSave_NoRunID(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Save(model.SuiteReport{}))
}

func TestLoad_Missing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load("nope")
	assert.Error(t, err)
}
