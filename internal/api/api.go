package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/db"
	"github.com/thatsimonsguy/shade-tester/internal/model"
	"github.com/thatsimonsguy/shade-tester/internal/report"
)

// StatusProvider is satisfied by the scene test runner.
type StatusProvider interface {
	Status() model.Progress
}

type Server struct {
	db     *sql.DB
	status StatusProvider
}

type ResultsResponse struct {
	RunID string              `json:"run_id"`
	Tally model.Tally         `json:"tally"`
	Rows  []model.SceneResult `json:"rows"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(database *sql.DB, status StatusProvider) *Server {
	return &Server{
		db:     database,
		status: status,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/results", s.handleResults)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting status server")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.status == nil {
		s.writeError(w, http.StatusServiceUnavailable, "No suite running")
		return
	}
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

// handleResults serves the rows of ?run=<id>, defaulting to the latest run.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		latest, err := db.GetLatestRunID(s.db)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.writeError(w, http.StatusNotFound, "No results recorded")
				return
			}
			log.Error().Err(err).Msg("Failed to get latest run")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		runID = latest
	}

	rows, err := db.GetSceneResults(s.db, runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to get scene results")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(rows) == 0 {
		s.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, ResultsResponse{
		RunID: runID,
		Tally: report.Tally(rows),
		Rows:  rows,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
