package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

// Rail describes the instruments watching one side of the shade.
type Rail struct {
	Label string `json:"label"`

	LaserPort     string  `json:"laser_port"`
	LaserBaud     int     `json:"laser_baud"`
	LaserMount    string  `json:"laser_mount"`
	LaserOffsetIn float64 `json:"laser_offset_in"`

	// MeterAddress is a usbtmc character device when MeterBaud is 0, otherwise a serial port.
	MeterAddress string `json:"meter_address"`
	MeterBaud    int    `json:"meter_baud"`
	MeterSerial  string `json:"meter_serial"`

	// Targets maps scene name to the expected rail position in inches.
	Targets map[string]float64 `json:"targets"`
}

type Config struct {
	ConfigFile string
	RigFile    string
	LogFile    string
	LogLevel   zerolog.Level
	DryRun     bool

	HubAddress          string `json:"hub_address"`
	PowerSwitchAddress  string `json:"power_switch_address"`
	PowerSwitchUser     string `json:"power_switch_user"`
	PowerSwitchPassword string `json:"power_switch_password"`
	DUTOutlet           int    `json:"dut_outlet"`
	DatabaseFile        string `json:"database_file"`
	DUTShadeName        string `json:"dut_shade_name"`

	ForceFirmwareUpdate   bool `json:"force_firmware_update"`
	FirmwareIndex         int  `json:"firmware_index"`
	OTAWaitSeconds        int  `json:"ota_wait_seconds"`
	DiscoveryDelaySeconds int  `json:"discovery_delay_seconds"`

	RigMode  string            `json:"rig_mode"`
	Scenes   map[string]string `json:"scenes"`
	Rails    []Rail            `json:"rails"`
	Sequence []string          `json:"sequence"`

	RepeatCount         int     `json:"repeat_count"`
	DwellSeconds        int     `json:"dwell_seconds"`
	PositionToleranceIn float64 `json:"position_tolerance_in"`
	MaxIdleCurrentA     float64 `json:"max_idle_current_a"`
	MeterSamples        int     `json:"meter_samples"`

	StatusPort int    `json:"status_port"`
	ReportDir  string `json:"report_dir"`
	ChartDir   string `json:"chart_dir"`
	NtfyTopic  string `json:"ntfy_topic"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to test rig config file")
	flag.StringVar(&cfg.RigFile, "rig-file", "", "Optional KEY:VALUE station file (config.txt) overlaid on the config")
	flag.StringVar(&cfg.LogFile, "log-file", "shade-tester.log", "Path to the JSON log file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Use simulated instruments instead of the bench hardware")
	flag.Parse()

	cfg.LogLevel = ParseLogLevel(logLevel)

	loaded, err := LoadFile(cfg.ConfigFile, cfg.RigFile)
	if err != nil {
		panic(err.Error())
	}
	loaded.ConfigFile = cfg.ConfigFile
	loaded.RigFile = cfg.RigFile
	loaded.LogFile = cfg.LogFile
	loaded.LogLevel = cfg.LogLevel
	loaded.DryRun = cfg.DryRun
	return loaded
}

// LoadFile decodes the JSON config, overlays the optional station file, fills
// defaults and validates. Validation problems panic.
func LoadFile(path, rigFile string) (Config, error) {
	var cfg Config

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if rigFile != "" {
		values, err := ReadRigFile(rigFile)
		if err != nil {
			return cfg, err
		}
		cfg.ApplyRig(values)
	}

	cfg.validate()
	return cfg, nil
}

func ParseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "data/results.db"
	}
	if cfg.RigMode == "" {
		cfg.RigMode = string(model.RigSingle)
	}
	if len(cfg.Scenes) == 0 {
		cfg.Scenes = DefaultScenes()
	}
	if len(cfg.Sequence) == 0 {
		cfg.Sequence = DefaultSequence()
	}
	if cfg.RepeatCount == 0 {
		cfg.RepeatCount = 5
	}
	if cfg.DwellSeconds == 0 {
		cfg.DwellSeconds = 30
	}
	if cfg.PositionToleranceIn == 0 {
		cfg.PositionToleranceIn = 0.25
	}
	if cfg.MaxIdleCurrentA == 0 {
		cfg.MaxIdleCurrentA = 0.000080
	}
	if cfg.MeterSamples == 0 {
		cfg.MeterSamples = 10
	}
	if cfg.OTAWaitSeconds == 0 {
		cfg.OTAWaitSeconds = 240
	}
	if cfg.DiscoveryDelaySeconds == 0 {
		cfg.DiscoveryDelaySeconds = 5
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "data/reports"
	}
	if cfg.ChartDir == "" {
		cfg.ChartDir = "data/charts"
	}
	if cfg.PowerSwitchUser == "" {
		cfg.PowerSwitchUser = "admin"
	}
	if cfg.PowerSwitchPassword == "" {
		cfg.PowerSwitchPassword = "1234"
	}

	if len(cfg.Rails) == 0 {
		cfg.Rails = []Rail{{Label: "test shade"}}
		if cfg.RigMode == string(model.RigDual) {
			cfg.Rails = []Rail{{Label: "Left Shade"}, {Label: "Right Shade", LaserPort: "/dev/ttyUSB1", MeterAddress: "/dev/usbtmc1"}}
		}
	}
	for i := range cfg.Rails {
		r := &cfg.Rails[i]
		if r.LaserPort == "" {
			r.LaserPort = "/dev/ttyUSB0"
		}
		if r.LaserBaud == 0 {
			r.LaserBaud = 19200
		}
		if r.LaserMount == "" {
			r.LaserMount = string(model.MountTop)
		}
		if r.MeterAddress == "" {
			r.MeterAddress = "/dev/usbtmc0"
		}
		if len(r.Targets) == 0 {
			if i == 1 {
				r.Targets = DefaultRightTargets()
			} else {
				r.Targets = DefaultLeftTargets()
			}
		}
	}
}

func (cfg *Config) validate() {
	var problems []string

	switch model.RigMode(cfg.RigMode) {
	case model.RigSingle:
		if len(cfg.Rails) != 1 {
			problems = append(problems, fmt.Sprintf("single rig needs exactly 1 rail, got %d", len(cfg.Rails)))
		}
	case model.RigDual:
		if len(cfg.Rails) != 2 {
			problems = append(problems, fmt.Sprintf("dual rig needs exactly 2 rails, got %d", len(cfg.Rails)))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown rig_mode %q", cfg.RigMode))
	}

	labels := map[string]bool{}
	for _, r := range cfg.Rails {
		if labels[r.Label] {
			problems = append(problems, fmt.Sprintf("duplicate rail label %q", r.Label))
		}
		labels[r.Label] = true
		if m := model.Mount(r.LaserMount); m != model.MountTop && m != model.MountBottom {
			problems = append(problems, fmt.Sprintf("rail %q: laser_mount must be Top or Bottom", r.Label))
		}
	}

	if len(cfg.Sequence) == 0 {
		problems = append(problems, "sequence is empty")
	}
	for _, name := range cfg.Sequence {
		if _, ok := cfg.Scenes[name]; !ok {
			problems = append(problems, fmt.Sprintf("scene %q has no hub scene id", name))
		}
		for _, r := range cfg.Rails {
			if _, ok := r.Targets[name]; !ok {
				problems = append(problems, fmt.Sprintf("scene %q has no target for rail %q", name, r.Label))
			}
		}
	}

	if cfg.RepeatCount < 1 {
		problems = append(problems, "repeat_count must be at least 1")
	}
	if cfg.PositionToleranceIn <= 0 {
		problems = append(problems, "position_tolerance_in must be positive")
	}
	if cfg.MaxIdleCurrentA <= 0 {
		problems = append(problems, "max_idle_current_a must be positive")
	}

	if len(problems) > 0 {
		panic("Invalid test rig config: " + strings.Join(problems, "; "))
	}
}

// DefaultScenes are the hub scene ids programmed on the office test hub.
func DefaultScenes() map[string]string {
	return map[string]string{
		"Open":    "44051",
		"Top Mid": "57236",
		"Mid":     "8832",
		"Low":     "8014",
		"Closed":  "33766",
	}
}

func DefaultSequence() []string {
	return []string{"Open", "Mid", "Closed", "Mid"}
}

func DefaultLeftTargets() map[string]float64 {
	return map[string]float64{
		"Open":        2.441,
		"Top Mid":     15.512,
		"RT_UP LT_DN": 70.315,
		"LT_UP RT_DN": 15.512,
		"Mid":         25.354,
		"Bad Scene":   99.99,
		"Low":         70.315,
		"Closed":      43.346,
	}
}

func DefaultRightTargets() map[string]float64 {
	return map[string]float64{
		"Open":        2.008,
		"Top Mid":     16.575,
		"RT_UP LT_DN": 16.575,
		"LT_UP RT_DN": 71.417,
		"Mid":         47.220,
		"Bad Scene":   99.99,
		"Low":         71.417,
		"Closed":      83.937,
	}
}
