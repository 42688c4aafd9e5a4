// Package store archives suite reports as JSON documents on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	scribble "github.com/nanobox-io/golang-scribble"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

const collection = "reports"

type Store struct {
	db *scribble.Driver
}

func New(dir string) (*Store, error) {
	db, err := scribble.New(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(report model.SuiteReport) error {
	if report.RunID == "" {
		return errors.New("report has no run id")
	}
	if err := s.db.Write(collection, report.RunID, report); err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.RunID, err)
	}
	return nil
}

func (s *Store) Load(runID string) (model.SuiteReport, error) {
	var report model.SuiteReport
	if err := s.db.Read(collection, runID, &report); err != nil {
		return report, fmt.Errorf("failed to load report %s: %w", runID, err)
	}
	return report, nil
}

// List returns every archived report, oldest first.
func (s *Store) List() ([]model.SuiteReport, error) {
	records, err := s.db.ReadAll(collection)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]model.SuiteReport, 0, len(records))
	for _, rec := range records {
		var r model.SuiteReport
		if err := json.Unmarshal([]byte(rec), &r); err != nil {
			return nil, fmt.Errorf("corrupt report record: %w", err)
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Started.Before(reports[j].Started)
	})
	return reports, nil
}
