// Package rig assembles the bench instruments described by the config.
package rig

import (
	"context"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/config"
	"github.com/thatsimonsguy/shade-tester/internal/dmm"
	"github.com/thatsimonsguy/shade-tester/internal/hub"
	"github.com/thatsimonsguy/shade-tester/internal/laser"
	"github.com/thatsimonsguy/shade-tester/internal/model"
	"github.com/thatsimonsguy/shade-tester/internal/power"
	"github.com/thatsimonsguy/shade-tester/internal/scenetest"
)

type Hub interface {
	RunScene(ctx context.Context, sceneID string) error
	GetShadeList(ctx context.Context) ([]model.Shade, error)
	GetFirmwareRevision(ctx context.Context, shadeID int) (string, error)
	StartOTAUpdate(ctx context.Context, shadeID, firmwareIndex int) error
}

type PowerSwitch interface {
	On(ctx context.Context, outlet int) error
	Off(ctx context.Context, outlet int) error
	Status(ctx context.Context, outlet int) (bool, error)
}

type Rig struct {
	Hub   Hub
	Power PowerSwitch
	Rails []scenetest.Rail

	closers []io.Closer
}

// Open connects to the hub and power switch and opens every rail's laser and
// meter. Instruments opened before a failure are closed again.
func Open(cfg config.Config) (*Rig, error) {
	r := &Rig{
		Hub:   hub.New(cfg.HubAddress),
		Power: power.New(cfg.PowerSwitchAddress, cfg.PowerSwitchUser, cfg.PowerSwitchPassword),
	}

	for _, rc := range cfg.Rails {
		l, err := laser.Open(rc.LaserPort, rc.LaserBaud, model.Mount(rc.LaserMount), rc.LaserOffsetIn)
		if err != nil {
			r.closeQuietly()
			return nil, err
		}
		r.closers = append(r.closers, l)

		m, err := dmm.Open(rc.MeterAddress, rc.MeterBaud, rc.MeterSerial, cfg.MeterSamples)
		if err != nil {
			r.closeQuietly()
			return nil, err
		}
		r.closers = append(r.closers, m)

		r.Rails = append(r.Rails, scenetest.Rail{
			Label:    rc.Label,
			Distance: l,
			Meter:    m,
			Targets:  rc.Targets,
		})
	}

	log.Info().Str("hub", cfg.HubAddress).Int("rails", len(r.Rails)).Msg("Test rig opened")
	return r, nil
}

// Close closes every instrument and returns all close errors together.
func (r *Rig) Close() error {
	var result *multierror.Error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.closers = nil
	return result.ErrorOrNil()
}

func (r *Rig) closeQuietly() {
	if err := r.Close(); err != nil {
		log.Warn().Err(err).Msg("Errors closing partially opened rig")
	}
}

// Simulated builds a rig with no hardware behind it. Running a scene moves the
// simulated rails to that scene's targets plus a small fixed offset.
func Simulated(cfg config.Config) *Rig {
	h := &simHub{
		scenes:   map[string]string{},
		shadeID:  4242,
		name:     cfg.DUTShadeName,
		firmware: "2.1.19",
	}
	for name, id := range cfg.Scenes {
		h.scenes[id] = name
	}

	r := &Rig{Hub: h, Power: &simPower{outlets: map[int]bool{}}}
	for _, rc := range cfg.Rails {
		r.Rails = append(r.Rails, scenetest.Rail{
			Label:    rc.Label,
			Distance: &simLaser{hub: h, targets: rc.Targets, offset: 0.05},
			Meter:    simMeter{amps: 0.000050},
			Targets:  rc.Targets,
		})
	}
	log.Warn().Msg("Using simulated test rig")
	return r
}

type simHub struct {
	mu       sync.Mutex
	scenes   map[string]string // scene id -> name
	current  string
	shadeID  int
	name     string
	firmware string
}

func (h *simHub) RunScene(ctx context.Context, sceneID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = h.scenes[sceneID]
	return nil
}

func (h *simHub) GetShadeList(ctx context.Context) ([]model.Shade, error) {
	return []model.Shade{{ID: h.shadeID, Name: h.name}}, nil
}

func (h *simHub) GetFirmwareRevision(ctx context.Context, shadeID int) (string, error) {
	return h.firmware, nil
}

func (h *simHub) StartOTAUpdate(ctx context.Context, shadeID, firmwareIndex int) error {
	return nil
}

func (h *simHub) scene() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

type simLaser struct {
	hub     *simHub
	targets map[string]float64
	offset  float64
}

func (l *simLaser) ReadDistance() (float64, error) {
	return l.targets[l.hub.scene()] + l.offset, nil
}

type simMeter struct {
	amps float64
}

func (m simMeter) AverageCurrent() (float64, error) {
	return m.amps, nil
}

type simPower struct {
	mu      sync.Mutex
	outlets map[int]bool
}

func (p *simPower) On(ctx context.Context, outlet int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outlets[outlet] = true
	return nil
}

func (p *simPower) Off(ctx context.Context, outlet int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outlets[outlet] = false
	return nil
}

func (p *simPower) Status(ctx context.Context, outlet int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outlets[outlet], nil
}
