package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		DUTShadeName:    "RoboTest",
		Scenes:          config.DefaultScenes(),
		MaxIdleCurrentA: 0.00008,
		Rails:           []config.Rail{{Label: "test shade", Targets: config.DefaultLeftTargets()}},
	}
}

func TestSceneNames_Sorted(t *testing.T) {
	assert.Equal(t, []string{"Closed", "Low", "Mid", "Open", "Top Mid"}, sceneNames(testConfig()))
}

func TestRailConfig(t *testing.T) {
	rc, err := railConfig(testConfig(), 1)
	require.NoError(t, err)
	assert.Equal(t, "test shade", rc.Label)

	_, err = railConfig(testConfig(), 2)
	assert.Error(t, err)
}

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	for _, cmd := range []string{"list-shades", "read-current", "outlet-on", "outlet-status"} {
		err := run(ctx, cfg, options{command: cmd, dryRun: true, rail: 1, outlet: 2})
		assert.NoError(t, err, cmd)
	}

	assert.NoError(t, run(ctx, cfg, options{command: "run-scene", scene: "Mid", dryRun: true}))
	assert.Error(t, run(ctx, cfg, options{command: "run-scene", scene: "Foo", dryRun: true}))
	assert.Error(t, run(ctx, cfg, options{command: "bogus"}))
}
