package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func InsertHeaderRowWithTx(tx *sql.Tx, h model.HeaderRow) error {
	_, err := tx.Exec(`INSERT INTO basic_ops_test (Date_time, Firmware_Rev, Test_Name, Result, Details) VALUES (?, ?, ?, ?, ?)`,
		h.DateTime.Format(time.RFC3339Nano), h.FirmwareRev, h.TestName, h.Result, h.Details)
	if err != nil {
		return fmt.Errorf("insert header row: %w", err)
	}
	return nil
}

func InsertSceneResultWithTx(tx *sql.Tx, r model.SceneResult) error {
	_, err := tx.Exec(`INSERT INTO scene_runner (Run_ID, Run_Time, Shade_Name, Current_Test_Passed, Average_Current, Position_Test_Passed, Pass_Number, Scene_Name, Target_Distance, Deviation, Scene_ID) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RunTime.Format(time.RFC3339Nano), r.ShadeName, r.CurrentTestPassed, r.AverageCurrent, r.PositionTestPassed, r.PassNumber, r.SceneName, r.TargetDistance, r.Deviation, r.SceneID)
	if err != nil {
		return fmt.Errorf("insert scene result: %w", err)
	}
	return nil
}

// InsertHeaderRow appends and commits one basic_ops_test row.
func InsertHeaderRow(db *sql.DB, h model.HeaderRow) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if err := InsertHeaderRowWithTx(tx, h); err != nil {
		RollbackTransaction(tx)
		return err
	}
	return CommitTransaction(tx)
}

// InsertSceneResult appends and commits one scene_runner row. Each row is
// committed on its own so an aborted run keeps everything measured so far.
func InsertSceneResult(db *sql.DB, r model.SceneResult) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if err := InsertSceneResultWithTx(tx, r); err != nil {
		RollbackTransaction(tx)
		return err
	}
	return CommitTransaction(tx)
}

// Sink adapts a results database to the scene runner.
type Sink struct {
	Conn *sql.DB
}

func (s Sink) InsertSceneResult(r model.SceneResult) error {
	return InsertSceneResult(s.Conn, r)
}
