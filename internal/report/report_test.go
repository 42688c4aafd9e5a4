package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

func init() {
	color.NoColor = true
}

func dualRows() []model.SceneResult {
	return []model.SceneResult{
		{PassNumber: 1, SceneName: "Open", ShadeName: "Left Shade", AverageCurrent: 0.00005, CurrentTestPassed: true, TargetDistance: 2.441, Deviation: -0.059, PositionTestPassed: true},
		{PassNumber: 1, SceneName: "Open", ShadeName: "Right Shade", AverageCurrent: 0.00009, CurrentTestPassed: false, TargetDistance: 2.008, Deviation: 0.3, PositionTestPassed: false},
		{PassNumber: 1, SceneName: "Mid", ShadeName: "Left Shade", AverageCurrent: 0.00005, CurrentTestPassed: true, TargetDistance: 25.354, Deviation: -0.646, PositionTestPassed: false},
		{PassNumber: 1, SceneName: "Mid", ShadeName: "Right Shade", AverageCurrent: 0.00005, CurrentTestPassed: true, TargetDistance: 47.22, Deviation: 0.01, PositionTestPassed: true},
	}
}

func TestTally(t *testing.T) {
	tally := Tally(dualRows())
	assert.Equal(t, model.Tally{Rows: 4, CurrentFailures: 1, PositionFailures: 2}, tally)
	assert.Equal(t, model.Tally{}, Tally(nil))
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, "PASS", Verdict(true))
	assert.Equal(t, "FAIL", Verdict(false))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, dualRows())
	out := buf.String()

	assert.Contains(t, out, "Left Shade")
	assert.Contains(t, out, "Right Shade")
	assert.Contains(t, out, "-0.646")
	assert.Contains(t, out, "90.0")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "4 rows recorded, 1 current failures, 2 position failures")
}

func TestWriteDeviationChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDeviationChart(&buf, dualRows(), "Bench run"))
	out := buf.String()

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Bench run")
	assert.Contains(t, out, "Left Shade")
	assert.Contains(t, out, "P1 Mid")
}

func TestDeviationSeries(t *testing.T) {
	labels, rails, series := deviationSeries(dualRows())
	assert.Equal(t, []string{"P1 Open", "P1 Mid"}, labels)
	assert.Equal(t, []string{"Left Shade", "Right Shade"}, rails)
	require.Len(t, series["Right Shade"], 2)
	assert.Equal(t, 0.01, series["Right Shade"][1].Value)
}

func TestDeviationSeries_RepeatedScene(t *testing.T) {
	rows := []model.SceneResult{
		{PassNumber: 1, SceneName: "Mid", ShadeName: "test shade"},
		{PassNumber: 1, SceneName: "Mid", ShadeName: "test shade"},
	}
	labels, _, series := deviationSeries(rows)
	assert.Equal(t, []string{"P1 Mid", "P1 Mid"}, labels)
	assert.Len(t, series["test shade"], 2)
}

func TestSaveDeviationChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	path, err := SaveDeviationChart(dir, "run-1", dualRows())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1.html"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "run-1")
}
