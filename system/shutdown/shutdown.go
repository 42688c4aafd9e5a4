package shutdown

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/datadog"
	"github.com/thatsimonsguy/shade-tester/internal/notifications"
)

var (
	mu      sync.Mutex
	closers []io.Closer
	exit    = os.Exit
)

// Register adds a resource to release on shutdown. Resources are closed in
// reverse registration order.
func Register(c io.Closer) {
	mu.Lock()
	defer mu.Unlock()
	closers = append(closers, c)
}

// Release closes every registered resource. Results already committed to the
// database are unaffected.
func Release() {
	mu.Lock()
	defer mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Error releasing resource")
		}
	}
	closers = nil
	datadog.Close()
}

func Shutdown() {
	Release()
	log.Info().Msg("Test rig released")
	exit(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	if notifications.Enabled() {
		if nerr := notifications.Aborted(msg + ": " + err.Error()); nerr != nil {
			log.Warn().Err(nerr).Msg("Failed to send abort notification")
		}
	}
	Release()
	exit(1)
}
