// Package datadog ships per-measurement metrics to a DogStatsD agent. All
// helpers are no-ops until InitMetrics has connected.
package datadog

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/env"
)

var dogstatsd *statsd.Client

// InitMetrics connects using the loaded config. Every metric carries the
// configured tags plus the rig mode.
func InitMetrics() {
	tags := append([]string{"rig_mode:" + env.Cfg.RigMode}, env.Cfg.DDTags...)

	c, err := statsd.New(env.Cfg.DDAgentAddr,
		statsd.WithNamespace(env.Cfg.DDNamespace),
		statsd.WithTags(tags),
	)
	if err != nil {
		log.Warn().Err(err).Str("addr", env.Cfg.DDAgentAddr).Msg("DogStatsD unavailable, metrics disabled")
		return
	}
	dogstatsd = c

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", tags).
		Msg("Bench metrics enabled")
}

func Enabled() bool {
	return dogstatsd != nil
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Gauge(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Dropped gauge")
	}
}

func Count(name string, value int64, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Count(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Dropped count")
	}
}

// Timing records how long a step took, e.g. one full scene.
func Timing(name string, d time.Duration, tags ...string) {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Timing(name, d, tags, 1); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("Dropped timing")
	}
}

func Close() {
	if dogstatsd == nil {
		return
	}
	if err := dogstatsd.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing DogStatsD client")
	}
	dogstatsd = nil
}
