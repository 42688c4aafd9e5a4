package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/db"
	"github.com/thatsimonsguy/shade-tester/internal/model"
)

type fixedStatus model.Progress

func (f fixedStatus) Status() model.Progress { return model.Progress(f) }

func setupTestDB(t *testing.T) *sql.DB {
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplySchema(database))
	return database
}

func insertRow(t *testing.T, database *sql.DB, runID, scene string, positionOK bool) {
	require.NoError(t, db.InsertSceneResult(database, model.SceneResult{
		RunID:              runID,
		RunTime:            time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		ShadeName:          "test shade",
		CurrentTestPassed:  true,
		AverageCurrent:     0.00005,
		PositionTestPassed: positionOK,
		PassNumber:         1,
		SceneName:          scene,
		TargetDistance:     2.441,
		Deviation:          -0.059,
		SceneID:            "44051",
	}))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	status := fixedStatus{RunID: "run-1", State: model.StateSettling, Scene: "Mid", Pass: 2, Tally: model.Tally{Rows: 5}}
	server := NewServer(setupTestDB(t), status)

	w := get(t, server.Handler(), "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var got model.Progress
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.StateSettling, got.State)
	assert.Equal(t, 2, got.Pass)
	assert.Equal(t, 5, got.Tally.Rows)
}

func TestGetStatus_NoRunner(t *testing.T) {
	server := NewServer(setupTestDB(t), nil)
	w := get(t, server.Handler(), "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetResults_ByRun(t *testing.T) {
	database := setupTestDB(t)
	insertRow(t, database, "run-1", "Open", true)
	insertRow(t, database, "run-1", "Mid", false)
	insertRow(t, database, "run-2", "Open", true)
	server := NewServer(database, nil)

	w := get(t, server.Handler(), "/api/results?run=run-1")
	require.Equal(t, http.StatusOK, w.Code)

	var got ResultsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Mid", got.Rows[1].SceneName)
	assert.Equal(t, 1, got.Tally.PositionFailures)
}

func TestGetResults_DefaultsToLatest(t *testing.T) {
	database := setupTestDB(t)
	insertRow(t, database, "run-1", "Open", true)
	insertRow(t, database, "run-2", "Closed", true)
	server := NewServer(database, nil)

	w := get(t, server.Handler(), "/api/results")
	require.Equal(t, http.StatusOK, w.Code)

	var got ResultsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "run-2", got.RunID)
	require.Len(t, got.Rows, 1)
}

func TestGetResults_NotFound(t *testing.T) {
	server := NewServer(setupTestDB(t), nil)

	w := get(t, server.Handler(), "/api/results")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, server.Handler(), "/api/results?run=missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var got ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "Run not found", got.Error)
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(setupTestDB(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/results", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPreflight(t *testing.T) {
	server := NewServer(setupTestDB(t), nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}
