package rig

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/internal/config"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func dualConfig() config.Config {
	return config.Config{
		RigMode:      "dual",
		DUTShadeName: "RoboTest",
		Scenes:       config.DefaultScenes(),
		Rails: []config.Rail{
			{Label: "Left Shade", Targets: config.DefaultLeftTargets()},
			{Label: "Right Shade", Targets: config.DefaultRightTargets()},
		},
	}
}

func TestClose_AggregatesErrors(t *testing.T) {
	var order []int
	r := &Rig{closers: []io.Closer{
		closeFunc(func() error { order = append(order, 1); return errors.New("laser busy") }),
		closeFunc(func() error { order = append(order, 2); return nil }),
		closeFunc(func() error { order = append(order, 3); return errors.New("meter gone") }),
	}}

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "laser busy")
	assert.Contains(t, err.Error(), "meter gone")
	assert.Equal(t, []int{3, 2, 1}, order)

	assert.NoError(t, r.Close())
}

func TestOpen_BadLaserPort(t *testing.T) {
	cfg := dualConfig()
	cfg.Rails[0].LaserPort = "/dev/does-not-exist-laser"
	cfg.Rails[0].LaserBaud = 19200

	_, err := Open(cfg)
	assert.ErrorContains(t, err, "does-not-exist-laser")
}

func TestSimulated_FollowsScene(t *testing.T) {
	r := Simulated(dualConfig())
	require.Len(t, r.Rails, 2)

	ctx := context.Background()
	require.NoError(t, r.Hub.RunScene(ctx, "8832"))

	left, err := r.Rails[0].Distance.ReadDistance()
	require.NoError(t, err)
	assert.InDelta(t, 25.354+0.05, left, 1e-9)

	right, err := r.Rails[1].Distance.ReadDistance()
	require.NoError(t, err)
	assert.InDelta(t, 47.220+0.05, right, 1e-9)

	amps, err := r.Rails[0].Meter.AverageCurrent()
	require.NoError(t, err)
	assert.Equal(t, 0.000050, amps)

	shades, err := r.Hub.GetShadeList(ctx)
	require.NoError(t, err)
	assert.Equal(t, "RoboTest", shades[0].Name)

	assert.NoError(t, r.Close())
}

func TestSimulated_Power(t *testing.T) {
	r := Simulated(dualConfig())
	ctx := context.Background()

	on, err := r.Power.Status(ctx, 3)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, r.Power.On(ctx, 3))
	on, _ = r.Power.Status(ctx, 3)
	assert.True(t, on)

	require.NoError(t, r.Power.Off(ctx, 3))
	on, _ = r.Power.Status(ctx, 3)
	assert.False(t, on)
}
