package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig describes how to open the sensor's serial port.
type SerialConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	// SettleDelay is how long to wait after opening before reading. Most
	// Arduino boards reset when the port is opened and need time to boot.
	SettleDelay time.Duration
}

// Serial is a line source backed by a serial port.
type Serial struct {
	*LineReader
	port io.ReadWriteCloser
	name string
}

// OpenSerial opens the port and waits out the settle delay. The wait is cut
// short if ctx is cancelled.
func OpenSerial(ctx context.Context, cfg SerialConfig) (*Serial, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	slog.Debug("serial port opened", "port", cfg.Port, "baud", cfg.Baud, "read_timeout", cfg.ReadTimeout)

	if cfg.SettleDelay > 0 {
		timer := time.NewTimer(cfg.SettleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		}
	}

	return &Serial{
		LineReader: NewLineReader(p, true),
		port:       p,
		name:       cfg.Port,
	}, nil
}

// Name returns the port path.
func (s *Serial) Name() string {
	return s.name
}

// Close closes the port.
func (s *Serial) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close serial port %s: %w", s.name, err)
	}
	return nil
}
