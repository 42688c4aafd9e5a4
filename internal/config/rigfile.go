package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadRigFile reads a station file of KEY:VALUE lines.
func ReadRigFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rig file: %w", err)
	}
	defer f.Close()
	return ParseRigFile(f)
}

// ParseRigFile splits each non-blank line on its first colon. Lines starting
// with # are ignored.
func ParseRigFile(r io.Reader) (map[string]string, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("rig file line %d: expected KEY:VALUE, got %q", lineNo, line)
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rig file: %w", err)
	}
	return values, nil
}

// ApplyRig overlays station values onto the config. Rails must already exist.
func (cfg *Config) ApplyRig(values map[string]string) {
	for key, value := range values {
		switch key {
		case "HUB_IP_1":
			cfg.HubAddress = value
		case "POWER_SWITCH_IP_ADDR":
			cfg.PowerSwitchAddress = value
		case "DATABASE_NAME":
			cfg.DatabaseFile = value
		case "DUT_SHADE_NAME":
			cfg.DUTShadeName = value
		case "FORCE_FIRMWARE_UPDATE":
			cfg.ForceFirmwareUpdate = value == "TRUE"
		case "FIRMWARE_INDEX":
			idx, err := strconv.Atoi(value)
			if err != nil {
				panic(fmt.Sprintf("FIRMWARE_INDEX must be an integer, got %q", value))
			}
			cfg.FirmwareIndex = idx
		default:
			if n, ok := strings.CutPrefix(key, "VISA_DMM_"); ok {
				i, err := strconv.Atoi(n)
				if err != nil || i < 1 || i > len(cfg.Rails) {
					log.Warn().Str("key", key).Msg("No rail for meter serial, ignoring")
					continue
				}
				cfg.Rails[i-1].MeterSerial = value
				continue
			}
			log.Debug().Str("key", key).Msg("Ignoring unknown rig file key")
		}
	}
}
