package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

const sceneColumns = `COALESCE(Run_ID, ''), Run_Time, Shade_Name, Current_Test_Passed, Average_Current, Position_Test_Passed, Pass_Number, Scene_Name, Target_Distance, Deviation, Scene_ID`

// Rows written by the older bench scripts use a space separator and no zone.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseStoredTime(s string) time.Time {
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	log.Warn().Str("value", s).Msg("Unrecognised timestamp in results database")
	return time.Time{}
}

// GetSceneResults returns scene rows in insertion order. An empty runID returns every row.
// Ordering uses rowid since tables created by the older scripts have no id column.
func GetSceneResults(db *sql.DB, runID string) ([]model.SceneResult, error) {
	var rows *sql.Rows
	var err error
	if runID == "" {
		rows, err = db.Query(`SELECT ` + sceneColumns + ` FROM scene_runner ORDER BY rowid`)
	} else {
		rows, err = db.Query(`SELECT `+sceneColumns+` FROM scene_runner WHERE Run_ID = ? ORDER BY rowid`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scene results: %w", err)
	}
	defer rows.Close()

	var results []model.SceneResult
	for rows.Next() {
		var r model.SceneResult
		var runTime string
		err = rows.Scan(&r.RunID, &runTime, &r.ShadeName, &r.CurrentTestPassed, &r.AverageCurrent, &r.PositionTestPassed, &r.PassNumber, &r.SceneName, &r.TargetDistance, &r.Deviation, &r.SceneID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene result: %w", err)
		}
		r.RunTime = parseStoredTime(runTime)
		results = append(results, r)
	}
	return results, rows.Err()
}

func CountSceneResults(db *sql.DB, runID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM scene_runner WHERE Run_ID = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scene results: %w", err)
	}
	return n, nil
}

// GetLatestRunID returns the run id of the most recently inserted scene row.
func GetLatestRunID(db *sql.DB) (string, error) {
	var runID sql.NullString
	err := db.QueryRow(`SELECT Run_ID FROM scene_runner WHERE Run_ID IS NOT NULL ORDER BY rowid DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("failed to get latest run id: %w", err)
	}
	return runID.String, nil
}

func GetHeaderRows(db *sql.DB) ([]model.HeaderRow, error) {
	rows, err := db.Query(`SELECT Date_time, COALESCE(Firmware_Rev, ''), Test_Name, Result, COALESCE(Details, '') FROM basic_ops_test ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query header rows: %w", err)
	}
	defer rows.Close()

	var headers []model.HeaderRow
	for rows.Next() {
		var h model.HeaderRow
		var dateTime string
		if err := rows.Scan(&dateTime, &h.FirmwareRev, &h.TestName, &h.Result, &h.Details); err != nil {
			return nil, fmt.Errorf("failed to scan header row: %w", err)
		}
		h.DateTime = parseStoredTime(dateTime)
		headers = append(headers, h)
	}
	return headers, rows.Err()
}
