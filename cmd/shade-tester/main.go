package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/db"
	"github.com/thatsimonsguy/shade-tester/internal/api"
	"github.com/thatsimonsguy/shade-tester/internal/config"
	"github.com/thatsimonsguy/shade-tester/internal/datadog"
	"github.com/thatsimonsguy/shade-tester/internal/env"
	"github.com/thatsimonsguy/shade-tester/internal/logging"
	"github.com/thatsimonsguy/shade-tester/internal/model"
	"github.com/thatsimonsguy/shade-tester/internal/notifications"
	"github.com/thatsimonsguy/shade-tester/internal/report"
	"github.com/thatsimonsguy/shade-tester/internal/rig"
	"github.com/thatsimonsguy/shade-tester/internal/scenetest"
	"github.com/thatsimonsguy/shade-tester/internal/store"
	"github.com/thatsimonsguy/shade-tester/system/shutdown"
	"github.com/thatsimonsguy/shade-tester/system/startup"
)

const suiteTestName = "Scene runner suite"

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg

	log.Info().
		Str("config", cfg.ConfigFile).
		Str("rig_mode", cfg.RigMode).
		Str("database", cfg.DatabaseFile).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting shade tester")

	if cfg.EnableDatadog {
		datadog.InitMetrics()
	}
	notifications.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(cfg.DatabaseFile)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open results database")
		return
	}
	shutdown.Register(dbConn)

	var bench *rig.Rig
	if cfg.DryRun {
		bench = rig.Simulated(cfg)
	} else {
		bench, err = rig.Open(cfg)
		if err != nil {
			shutdown.ShutdownWithError(err, "Failed to open test rig")
			return
		}
	}
	shutdown.Register(bench)

	dut, err := startup.Bootstrap(ctx, bench, dbConn, cfg)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to bring up device under test")
		return
	}

	runner, err := scenetest.NewRunner(bench.Hub, db.Sink{Conn: dbConn}, scenetest.Options{
		Scenes: cfg.Scenes,
		Rails:  bench.Rails,
		Thresholds: scenetest.Thresholds{
			MaxIdleCurrent:    cfg.MaxIdleCurrentA,
			PositionTolerance: cfg.PositionToleranceIn,
		},
		Dwell: time.Duration(cfg.DwellSeconds) * time.Second,
	})
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to build scene runner")
		return
	}

	log.Info().Str("run_id", runner.RunID()).Str("mode", string(runner.Mode())).Msg("Scene runner ready")

	if cfg.StatusPort > 0 {
		server := api.NewServer(dbConn, runner)
		go func() {
			if err := server.Start(cfg.StatusPort); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	reports, err := store.New(cfg.ReportDir)
	if err != nil {
		log.Warn().Err(err).Msg("Suite reports will not be archived")
	}

	outcome, runErr := runner.RunSuite(ctx, cfg.Sequence, cfg.RepeatCount)
	suiteReport := model.SuiteReport{
		SuiteOutcome: outcome,
		ShadeID:      dut.ShadeID,
		ShadeName:    dut.Name,
		FirmwareRev:  dut.FirmwareRev,
		RigMode:      runner.Mode(),
		Sequence:     cfg.Sequence,
	}
	if runErr != nil {
		if n, err := db.CountSceneResults(dbConn, outcome.RunID); err == nil {
			log.Warn().Int("rows", n).Msg("Rows committed before abort")
		}
		suiteReport.Error = runErr.Error()
		saveReport(reports, suiteReport)
		shutdown.ShutdownWithError(runErr, "Scene suite aborted")
		return
	}

	finish(dbConn, reports, suiteReport, cfg)
	fmt.Println(outcome.Result)
	shutdown.Shutdown()
}

// completionHeader is the basic_ops_test row written when a suite finishes.
func completionHeader(r model.SuiteReport) model.HeaderRow {
	return model.HeaderRow{
		DateTime:    r.Finished,
		FirmwareRev: r.FirmwareRev,
		TestName:    suiteTestName,
		Result:      r.Result,
		Details: fmt.Sprintf("%d rows, %d current failures, %d position failures",
			r.Tally.Rows, r.Tally.CurrentFailures, r.Tally.PositionFailures),
	}
}

func recordCompletion(dbConn *sql.DB, r model.SuiteReport) (model.HeaderRow, error) {
	header := completionHeader(r)
	if err := db.InsertHeaderRow(dbConn, header); err != nil {
		return header, fmt.Errorf("failed to record suite completion: %w", err)
	}
	return header, nil
}

func finish(dbConn *sql.DB, reports *store.Store, r model.SuiteReport, cfg config.Config) {
	header, err := recordCompletion(dbConn, r)
	if err != nil {
		log.Error().Err(err).Msg("Suite completion row not written")
	}

	rows, err := db.GetSceneResults(dbConn, r.RunID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read back suite results")
	} else {
		report.WriteSummary(os.Stdout, rows)
		if path, err := report.SaveDeviationChart(cfg.ChartDir, r.RunID, rows); err != nil {
			log.Warn().Err(err).Msg("Failed to write deviation chart")
		} else {
			log.Info().Str("path", path).Msg("Deviation chart written")
		}
	}

	saveReport(reports, r)

	if notifications.Enabled() {
		msg := fmt.Sprintf("%s on %s (fw %s): %s. Scenes: %s", r.Result, r.ShadeName, r.FirmwareRev, header.Details, strings.Join(r.Sequence, ", "))
		if err := notifications.Completed(msg); err != nil {
			log.Warn().Err(err).Msg("Failed to send completion notification")
		}
	}
}

func saveReport(reports *store.Store, r model.SuiteReport) {
	if reports == nil {
		return
	}
	if err := reports.Save(r); err != nil {
		log.Warn().Err(err).Str("run_id", r.RunID).Msg("Failed to archive suite report")
	}
}
