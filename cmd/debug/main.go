package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/thatsimonsguy/shade-tester/db"
	"github.com/thatsimonsguy/shade-tester/internal/config"
	"github.com/thatsimonsguy/shade-tester/internal/dmm"
	"github.com/thatsimonsguy/shade-tester/internal/hub"
	"github.com/thatsimonsguy/shade-tester/internal/laser"
	"github.com/thatsimonsguy/shade-tester/internal/model"
	"github.com/thatsimonsguy/shade-tester/internal/power"
	"github.com/thatsimonsguy/shade-tester/internal/report"
	"github.com/thatsimonsguy/shade-tester/internal/rig"
	"github.com/thatsimonsguy/shade-tester/internal/scenetest"
	"github.com/thatsimonsguy/shade-tester/internal/store"
)

var commands = []string{
	"list-shades",
	"run-scene",
	"read-laser",
	"read-current",
	"outlet-on",
	"outlet-off",
	"outlet-status",
	"results",
	"headers",
	"reports",
	"chart",
}

type options struct {
	configFile string
	rigFile    string
	dbPath     string
	command    string
	scene      string
	rail       int
	outlet     int
	runID      string
	dryRun     bool
}

func main() {
	DebugCLI()
}

func DebugCLI() {
	var o options
	flag.StringVar(&o.configFile, "config-file", "config.json", "Path to test rig config file")
	flag.StringVar(&o.rigFile, "rig-file", "", "Optional KEY:VALUE station file")
	flag.StringVar(&o.dbPath, "db", "", "Path to the SQLite results database (default from config)")
	flag.StringVar(&o.command, "cmd", "", "Command to run (omit for an interactive menu)")
	flag.StringVar(&o.scene, "scene", "", "Scene name for run-scene")
	flag.IntVar(&o.rail, "rail", 1, "Rail number for read-laser and read-current")
	flag.IntVar(&o.outlet, "outlet", 0, "Power switch outlet for outlet commands")
	flag.StringVar(&o.runID, "run", "", "Run ID for results and chart (default latest)")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Use simulated instruments")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("\nUsage of shade-debug:")
		flag.PrintDefaults()
		fmt.Println("\nCommands:")
		for _, c := range commands {
			fmt.Println("  " + c)
		}
		os.Exit(0)
	}

	cfg, err := config.LoadFile(o.configFile, o.rigFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if o.dbPath == "" {
		o.dbPath = cfg.DatabaseFile
	}

	if o.command == "" {
		o.command, err = choose("Command", commands)
		if err != nil {
			fmt.Printf("Prompt failed: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, o); err != nil {
		fmt.Printf("Command %s failed: %v\n", o.command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", o.command)
}

func run(ctx context.Context, cfg config.Config, o options) error {
	switch o.command {
	case "list-shades":
		shades, err := benchHub(cfg, o).GetShadeList(ctx)
		if err != nil {
			return err
		}
		for _, s := range shades {
			fmt.Printf("%6d  %s\n", s.ID, s.Name)
		}
		id, found := hub.FindShadeID(shades, cfg.DUTShadeName)
		fmt.Printf("DUT %q -> id %d (found: %v)\n", cfg.DUTShadeName, id, found)
		return nil

	case "run-scene":
		scene := o.scene
		if scene == "" {
			var err error
			if scene, err = choose("Scene", sceneNames(cfg)); err != nil {
				return err
			}
		}
		id, ok := cfg.Scenes[scene]
		if !ok {
			return fmt.Errorf("unknown scene %q", scene)
		}
		return benchHub(cfg, o).RunScene(ctx, id)

	case "read-laser":
		rc, err := railConfig(cfg, o.rail)
		if err != nil {
			return err
		}
		if o.dryRun {
			fmt.Println("Simulated laser has no position until a scene runs")
			return nil
		}
		l, err := laser.Open(rc.LaserPort, rc.LaserBaud, model.Mount(rc.LaserMount), rc.LaserOffsetIn)
		if err != nil {
			return err
		}
		defer l.Close()
		d, err := l.ReadDistance()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %.3f in\n", rc.Label, d)
		return nil

	case "read-current":
		rc, err := railConfig(cfg, o.rail)
		if err != nil {
			return err
		}
		var meter scenetest.CurrentMeter
		if o.dryRun {
			meter = rig.Simulated(cfg).Rails[o.rail-1].Meter
		} else {
			m, err := dmm.Open(rc.MeterAddress, rc.MeterBaud, rc.MeterSerial, cfg.MeterSamples)
			if err != nil {
				return err
			}
			defer m.Close()
			meter = m
		}
		amps, err := meter.AverageCurrent()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %.1f uA %s\n", rc.Label, amps*1e6, report.Verdict(amps <= cfg.MaxIdleCurrentA))
		return nil

	case "outlet-on", "outlet-off", "outlet-status":
		outlet, err := outletNumber(o.outlet)
		if err != nil {
			return err
		}
		sw := benchPower(cfg, o)
		switch o.command {
		case "outlet-on":
			return sw.On(ctx, outlet)
		case "outlet-off":
			return sw.Off(ctx, outlet)
		}
		on, err := sw.Status(ctx, outlet)
		if err != nil {
			return err
		}
		fmt.Printf("Outlet %d on: %v\n", outlet, on)
		return nil

	case "results":
		rows, runID, err := db.SceneResultsCLI(o.dbPath, o.runID)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s\n", runID)
		report.WriteSummary(os.Stdout, rows)
		return nil

	case "headers":
		headers, err := db.HeaderRowsCLI(o.dbPath)
		if err != nil {
			return err
		}
		for _, h := range headers {
			fmt.Printf("%s  %-10s %-32s %-8s %s\n", h.DateTime.Format(time.DateTime), h.FirmwareRev, h.TestName, h.Result, h.Details)
		}
		return nil

	case "reports":
		s, err := store.New(cfg.ReportDir)
		if err != nil {
			return err
		}
		reports, err := s.List()
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  %-8s rows=%d current_fail=%d position_fail=%d %s\n",
				r.Started.Format(time.DateTime), r.RunID, r.Result, r.Tally.Rows, r.Tally.CurrentFailures, r.Tally.PositionFailures, r.Error)
		}
		return nil

	case "chart":
		rows, runID, err := db.SceneResultsCLI(o.dbPath, o.runID)
		if err != nil {
			return err
		}
		path, err := report.SaveDeviationChart(cfg.ChartDir, runID, rows)
		if err != nil {
			return err
		}
		fmt.Println("Chart written to", path)
		return nil
	}
	return fmt.Errorf("invalid command %q", o.command)
}

func benchHub(cfg config.Config, o options) rig.Hub {
	if o.dryRun {
		return rig.Simulated(cfg).Hub
	}
	return hub.New(cfg.HubAddress)
}

func benchPower(cfg config.Config, o options) rig.PowerSwitch {
	if o.dryRun {
		return rig.Simulated(cfg).Power
	}
	return power.New(cfg.PowerSwitchAddress, cfg.PowerSwitchUser, cfg.PowerSwitchPassword)
}

func railConfig(cfg config.Config, n int) (config.Rail, error) {
	if n < 1 || n > len(cfg.Rails) {
		return config.Rail{}, fmt.Errorf("rail %d out of range 1-%d", n, len(cfg.Rails))
	}
	return cfg.Rails[n-1], nil
}

func outletNumber(flagValue int) (int, error) {
	if flagValue > 0 {
		return flagValue, nil
	}
	prompt := promptui.Prompt{
		Label: "Outlet",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("outlet must be a positive number")
			}
			return nil
		},
	}
	s, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func sceneNames(cfg config.Config) []string {
	names := make([]string, 0, len(cfg.Scenes))
	for name := range cfg.Scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func choose(label string, items []string) (string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
	}
	_, result, err := prompt.Run()
	return result, err
}
