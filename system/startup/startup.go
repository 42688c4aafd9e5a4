package startup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/db"
	"github.com/thatsimonsguy/shade-tester/internal/config"
	"github.com/thatsimonsguy/shade-tester/internal/hub"
	"github.com/thatsimonsguy/shade-tester/internal/model"
	"github.com/thatsimonsguy/shade-tester/internal/rig"
)

const PowerUpTestName = "Initial power up and FW read"

// DUT is the shade under test as found on the hub.
type DUT struct {
	ShadeID     int
	Name        string
	FirmwareRev string
}

var wait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Bootstrap brings the device under test up before the scene suite: powers
// its outlet, finds it on the hub, records the power-up header row and
// optionally forces a firmware update.
func Bootstrap(ctx context.Context, r *rig.Rig, dbConn *sql.DB, cfg config.Config) (DUT, error) {
	if err := PowerOnDUT(ctx, r.Power, cfg.DUTOutlet); err != nil {
		return DUT{}, err
	}

	dut, err := DiscoverShade(ctx, r.Hub, cfg.DUTShadeName)
	if err != nil {
		return dut, err
	}

	if err := wait(ctx, time.Duration(cfg.DiscoveryDelaySeconds)*time.Second); err != nil {
		return dut, err
	}

	if dut.FirmwareRev, err = RecordPowerUp(ctx, r.Hub, dbConn, dut.ShadeID); err != nil {
		return dut, err
	}

	if !cfg.ForceFirmwareUpdate {
		log.Info().Msg("No firmware update attempted")
		return dut, nil
	}
	if dut.FirmwareRev, err = UpdateFirmware(ctx, r.Hub, dut.ShadeID, cfg.FirmwareIndex, time.Duration(cfg.OTAWaitSeconds)*time.Second); err != nil {
		return dut, err
	}
	return dut, nil
}

// PowerOnDUT switches the DUT outlet on. Outlet 0 means the DUT is powered
// some other way.
func PowerOnDUT(ctx context.Context, p rig.PowerSwitch, outlet int) error {
	if outlet <= 0 {
		return nil
	}
	on, err := p.Status(ctx, outlet)
	if err != nil {
		return fmt.Errorf("failed to read DUT outlet: %w", err)
	}
	if on {
		log.Info().Int("outlet", outlet).Msg("DUT outlet already on")
		return nil
	}
	if err := p.On(ctx, outlet); err != nil {
		return fmt.Errorf("failed to power DUT: %w", err)
	}
	return nil
}

// DiscoverShade looks the DUT up by name. A missing shade is not an error;
// the default id is used with a warning.
func DiscoverShade(ctx context.Context, h rig.Hub, name string) (DUT, error) {
	shades, err := h.GetShadeList(ctx)
	if err != nil {
		return DUT{}, fmt.Errorf("failed to list shades: %w", err)
	}

	id, found := hub.FindShadeID(shades, name)
	if !found {
		log.Warn().Int("shade_id", id).Str("name", name).Msg("DUT not found on hub, using default shade id")
	} else {
		log.Info().Int("shade_id", id).Str("name", name).Msg("Using shade for testing")
	}
	return DUT{ShadeID: id, Name: name}, nil
}

func RecordPowerUp(ctx context.Context, h rig.Hub, dbConn *sql.DB, shadeID int) (string, error) {
	rev, err := h.GetFirmwareRevision(ctx, shadeID)
	if err != nil {
		return "", fmt.Errorf("failed to read firmware revision: %w", err)
	}
	log.Info().Str("firmware", rev).Msg("Shade reports firmware version")

	err = db.InsertHeaderRow(dbConn, model.HeaderRow{
		DateTime:    time.Now(),
		FirmwareRev: rev,
		TestName:    PowerUpTestName,
		Result:      model.HeaderPass,
		Details:     model.HeaderNone,
	})
	return rev, err
}

// UpdateFirmware starts an OTA update and waits a fixed time for it to finish;
// the hub gives no completion signal.
func UpdateFirmware(ctx context.Context, h rig.Hub, shadeID, index int, otaWait time.Duration) (string, error) {
	log.Info().Int("shade_id", shadeID).Int("index", index).Msg("Updating firmware before continuing")
	if err := h.StartOTAUpdate(ctx, shadeID, index); err != nil {
		return "", fmt.Errorf("failed to start firmware update: %w", err)
	}
	if err := wait(ctx, otaWait); err != nil {
		return "", err
	}
	rev, err := h.GetFirmwareRevision(ctx, shadeID)
	if err != nil {
		return "", fmt.Errorf("failed to read firmware after update: %w", err)
	}
	log.Info().Str("firmware", rev).Msg("After update, shade reports firmware version")
	return rev, nil
}
