// Package laser reads rail position from a serial laser distance module.
package laser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"

	"github.com/thatsimonsguy/shade-tester/internal/model"
)

const metersPerInch = 0.0254

// Single-shot measure. The module answers "D: 1.234m,0079" (metres, signal
// quality) or "E<code>" when it could not lock onto the target.
const measureCmd = "D"

var replyRegex = regexp.MustCompile(`^D:\s*([-+]?\d+(?:\.\d+)?)\s*m(?:,(\d+))?`)

type Reader struct {
	port     io.ReadWriter
	closer   io.Closer
	lines    *bufio.Reader
	mount    model.Mount
	offsetIn float64
}

// Open opens the laser on a serial port.
func Open(portName string, baud int, mount model.Mount, offsetIn float64) (*Reader, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        portName,
		Baud:        baud,
		ReadTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open laser on %s: %w", portName, err)
	}
	log.Info().Str("port", portName).Str("mount", string(mount)).Msg("Laser initialized")
	r := New(port, mount, offsetIn)
	r.closer = port
	return r, nil
}

// New wraps an already open link.
func New(port io.ReadWriter, mount model.Mount, offsetIn float64) *Reader {
	return &Reader{
		port:     port,
		lines:    bufio.NewReader(port),
		mount:    mount,
		offsetIn: offsetIn,
	}
}

// ReadDistance returns the rail position in inches. A top mounted laser
// measures down to the rail; a bottom mounted one measures up to it, so the
// reading is subtracted from the offset.
func (r *Reader) ReadDistance() (float64, error) {
	if _, err := io.WriteString(r.port, measureCmd+"\r\n"); err != nil {
		return 0, fmt.Errorf("failed to send measure command: %w", err)
	}

	line, err := r.lines.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("failed to read laser reply: %w", err)
	}

	meters, err := parseReply(line)
	if err != nil {
		return 0, err
	}

	inches := meters / metersPerInch
	if r.mount == model.MountBottom {
		return r.offsetIn - inches, nil
	}
	return inches + r.offsetIn, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func parseReply(line string) (float64, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "E") {
		return 0, fmt.Errorf("laser reported error %s", line)
	}
	matches := replyRegex.FindStringSubmatch(line)
	if matches == nil {
		return 0, fmt.Errorf("unexpected laser reply: %q", line)
	}
	meters, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse distance %q: %w", matches[1], err)
	}
	return meters, nil
}
