package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sends JSON lines to logPath and a human readable trace to stdout for
// the operator at the bench.
func Init(level zerolog.Level, logPath string) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Errorf("failed to open log file: %w", err))
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	multi := zerolog.MultiLevelWriter(logFile, console)

	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if level == zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
}
