// Package dmm reads idle current from a SCPI bench multimeter.
package dmm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"
)

type Meter struct {
	port    io.ReadWriter
	closer  io.Closer
	lines   *bufio.Reader
	samples int
}

// Open connects to the meter at address. With baud 0 the address is a
// usbtmc character device (e.g. /dev/usbtmc0), otherwise a serial port.
// When serialNumber is set the meter's *IDN? reply must contain it.
func Open(address string, baud int, serialNumber string, samples int) (*Meter, error) {
	var port io.ReadWriteCloser
	var err error
	if baud == 0 {
		port, err = os.OpenFile(address, os.O_RDWR, 0)
	} else {
		port, err = serial.OpenPort(&serial.Config{Name: address, Baud: baud, ReadTimeout: 10 * time.Second})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open meter on %s: %w", address, err)
	}

	m := New(port, samples)
	m.closer = port

	idn, err := m.Identify()
	if err != nil {
		port.Close()
		return nil, err
	}
	if serialNumber != "" && !strings.Contains(idn, serialNumber) {
		port.Close()
		return nil, fmt.Errorf("meter on %s is %q, expected serial %s", address, idn, serialNumber)
	}
	if err := m.ConfigureCurrent(); err != nil {
		port.Close()
		return nil, err
	}

	log.Info().Str("address", address).Str("idn", idn).Msg("Meter initialized")
	return m, nil
}

func New(port io.ReadWriter, samples int) *Meter {
	if samples < 1 {
		samples = 1
	}
	return &Meter{port: port, lines: bufio.NewReader(port), samples: samples}
}

func (m *Meter) Identify() (string, error) {
	return m.Query("*IDN?")
}

func (m *Meter) ConfigureCurrent() error {
	return m.Write("CONF:CURR:DC AUTO")
}

// AverageCurrent takes the configured number of DC current readings and
// returns their mean in amperes.
func (m *Meter) AverageCurrent() (float64, error) {
	var sum float64
	for i := 0; i < m.samples; i++ {
		reply, err := m.Query("READ?")
		if err != nil {
			return 0, err
		}
		amps, err := strconv.ParseFloat(reply, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse meter reading %q: %w", reply, err)
		}
		sum += amps
	}
	avg := sum / float64(m.samples)
	log.Debug().Int("samples", m.samples).Float64("amps", avg).Msg("Averaged current")
	return avg, nil
}

func (m *Meter) Write(cmd string) error {
	if _, err := io.WriteString(m.port, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to write %q to meter: %w", cmd, err)
	}
	return nil
}

func (m *Meter) Query(cmd string) (string, error) {
	if err := m.Write(cmd); err != nil {
		return "", err
	}
	line, err := m.lines.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read meter reply to %q: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}

func (m *Meter) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}
