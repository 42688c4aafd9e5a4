package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS basic_ops_test (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	Date_time TEXT NOT NULL,
	Firmware_Rev TEXT,
	Test_Name TEXT NOT NULL,
	Result TEXT NOT NULL,
	Details TEXT
);

CREATE TABLE IF NOT EXISTS scene_runner (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	Run_ID TEXT,
	Run_Time TEXT NOT NULL,
	Shade_Name TEXT NOT NULL,
	Current_Test_Passed BOOLEAN NOT NULL,
	Average_Current REAL NOT NULL,
	Position_Test_Passed BOOLEAN NOT NULL,
	Pass_Number INTEGER NOT NULL,
	Scene_Name TEXT NOT NULL,
	Target_Distance REAL NOT NULL,
	Deviation REAL NOT NULL,
	Scene_ID TEXT NOT NULL
);
`

// Open opens the results database, creating the file and tables if needed.
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := ApplySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("Results database opened")
	return conn, nil
}

func ApplySchema(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return ApplyMigrations(conn)
}

// ApplyMigrations upgrades result files written before runs were tagged.
func ApplyMigrations(conn *sql.DB) error {
	has, err := hasColumn(conn, "scene_runner", "Run_ID")
	if err != nil {
		return err
	}
	if !has {
		if _, err := conn.Exec("ALTER TABLE scene_runner ADD COLUMN Run_ID TEXT"); err != nil {
			return fmt.Errorf("failed to add Run_ID column: %w", err)
		}
		log.Info().Msg("Migrated scene_runner: added Run_ID")
	}
	return nil
}

func hasColumn(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notNull bool
		var defaultValue *string
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
