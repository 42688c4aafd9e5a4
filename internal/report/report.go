// Package report renders suite results for the operator: a console summary
// table and an HTML deviation chart.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/olekukonko/tablewriter"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

var (
	passText = color.New(color.FgGreen, color.Bold).SprintFunc()
	failText = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Verdict renders a pass/fail flag the way the console trace shows it.
func Verdict(ok bool) string {
	if ok {
		return passText("PASS")
	}
	return failText("FAIL")
}

func Tally(rows []model.SceneResult) model.Tally {
	t := model.Tally{Rows: len(rows)}
	for _, r := range rows {
		if !r.CurrentTestPassed {
			t.CurrentFailures++
		}
		if !r.PositionTestPassed {
			t.PositionFailures++
		}
	}
	return t
}

// WriteSummary prints one table line per recorded row followed by the tally.
func WriteSummary(w io.Writer, rows []model.SceneResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pass", "Scene", "Rail", "Current (uA)", "Current", "Target (in)", "Deviation (in)", "Position"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", r.PassNumber),
			r.SceneName,
			r.ShadeName,
			fmt.Sprintf("%.1f", r.AverageCurrent*1e6),
			Verdict(r.CurrentTestPassed),
			fmt.Sprintf("%.3f", r.TargetDistance),
			fmt.Sprintf("%+.3f", r.Deviation),
			Verdict(r.PositionTestPassed),
		})
	}

	t := Tally(rows)
	table.SetFooter([]string{"", "", "", "", fmt.Sprintf("%d fail", t.CurrentFailures), "", "", fmt.Sprintf("%d fail", t.PositionFailures)})
	table.Render()
	fmt.Fprintf(w, "%d rows recorded, %d current failures, %d position failures\n", t.Rows, t.CurrentFailures, t.PositionFailures)
}

// DeviationChart plots signed deviation per scene execution, one series per rail.
func DeviationChart(rows []model.SceneResult, title string) *charts.Line {
	labels, rails, series := deviationSeries(rows)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d measurement(s)", len(rows)),
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Deviation (in)", Type: "value"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Scene"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
	)

	line.SetXAxis(labels)
	for _, rail := range rails {
		line.AddSeries(rail, series[rail])
	}
	return line
}

// deviationSeries groups rows by scene execution. Rails measured for the same
// execution share an x position.
func deviationSeries(rows []model.SceneResult) ([]string, []string, map[string][]opts.LineData) {
	var labels []string
	var rails []string
	series := map[string][]opts.LineData{}

	last := ""
	for _, r := range rows {
		label := fmt.Sprintf("P%d %s", r.PassNumber, r.SceneName)
		if _, seen := series[r.ShadeName]; !seen {
			rails = append(rails, r.ShadeName)
		}
		if label != last || len(series[r.ShadeName]) == len(labels) {
			labels = append(labels, label)
			last = label
		}
		series[r.ShadeName] = append(series[r.ShadeName], opts.LineData{Value: r.Deviation, Name: r.SceneName})
	}
	return labels, rails, series
}

func WriteDeviationChart(w io.Writer, rows []model.SceneResult, title string) error {
	return DeviationChart(rows, title).Render(w)
}

// SaveDeviationChart writes <dir>/<runID>.html and returns its path.
func SaveDeviationChart(dir, runID string, rows []model.SceneResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}
	path := filepath.Join(dir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := WriteDeviationChart(f, rows, "Rail deviation, run "+runID); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return path, nil
}
