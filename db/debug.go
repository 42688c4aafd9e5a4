package db

import (
	"database/sql"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

// SceneResultsCLI loads rows for runID, or for the latest run when runID is empty.
func SceneResultsCLI(dbPath, runID string) ([]model.SceneResult, string, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, "", err
	}
	defer dbConn.Close()

	if runID == "" {
		runID, err = GetLatestRunID(dbConn)
		if err != nil {
			return nil, "", err
		}
	}
	results, err := GetSceneResults(dbConn, runID)
	return results, runID, err
}

func HeaderRowsCLI(dbPath string) ([]model.HeaderRow, error) {
	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	defer dbConn.Close()
	return GetHeaderRows(dbConn)
}
