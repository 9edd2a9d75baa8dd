// Package transport delivers command strings to the boats over the serial
// radio module, or pretends to when no radio is attached.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"go.bug.st/serial"

	"github.com/usvlab/boatlink/internal/config"
)

// Transport modes reported by Mode.
const (
	ModeSerial    = "serial"
	ModeSimulated = "simulated"
)

// ErrWriteFailed wraps any failed or short write to the radio.
var ErrWriteFailed = errors.New("radio write failed")

// Transport sends one command string to the radio link.
type Transport interface {
	Transmit(command string) error
	Mode() string
	Close() error
}

// Port is the part of a serial port the transport uses.
type Port interface {
	io.Writer
	io.Closer
}

// OpenPort opens a serial device. Tests replace it.
var OpenPort = func(device string, baud int) (Port, error) {
	return serial.Open(device, &serial.Mode{BaudRate: baud})
}

// Open selects the transport once at startup. A disabled link or a device
// that cannot be opened yields the simulated transport.
func Open(cfg config.TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled || cfg.Device == "" {
		logger.Info("Radio link disabled, using simulated transport")
		return NewSimulated(logger)
	}

	port, err := OpenPort(cfg.Device, cfg.Baud)
	if err != nil {
		logger.Warn("Cannot open serial port for radio, using simulated transport",
			"device", cfg.Device, "baud", cfg.Baud, "error", err)
		return NewSimulated(logger)
	}

	logger.Info("Radio module connected", "device", cfg.Device, "baud", cfg.Baud)
	return NewSerial(port, cfg.Device, DecodeTerminator(cfg.Terminator), logger)
}

// DecodeTerminator interprets Go escapes such as \n or \r\n in a configured
// terminator, so it can be set from an environment variable.
func DecodeTerminator(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

// Serial writes commands to an open serial port.
type Serial struct {
	mu         sync.Mutex
	port       Port
	device     string
	terminator string
	logger     *slog.Logger
}

// NewSerial wraps an open port. terminator is appended to every command.
func NewSerial(port Port, device, terminator string, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{port: port, device: device, terminator: terminator, logger: logger}
}

// Transmit writes the command and terminator as one write. A failure leaves
// the port open for later commands.
func (s *Serial) Transmit(command string) error {
	data := []byte(command + s.terminator)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Transmitting radio command", "command", command)
	n, err := s.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, s.device, err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: %s: short write of %d/%d bytes", ErrWriteFailed, s.device, n, len(data))
	}
	return nil
}

func (s *Serial) Mode() string { return ModeSerial }

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

// Simulated accepts every command and only logs it.
type Simulated struct {
	logger *slog.Logger
}

// NewSimulated returns the stand-in used when no radio is attached.
func NewSimulated(logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{logger: logger}
}

func (s *Simulated) Transmit(command string) error {
	s.logger.Info("(simulated) radio command", "command", command)
	return nil
}

func (s *Simulated) Mode() string { return ModeSimulated }

func (s *Simulated) Close() error { return nil }
