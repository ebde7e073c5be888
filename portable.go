package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	bugst "go.bug.st/serial"
)

// PortConn is the subset of a go.bug.st/serial port used by PortableSource.
type PortConn interface {
	Read(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port connection.
type PortFactory func(path string, mode *bugst.Mode) (PortConn, error)

// DefaultPortFactory opens real serial ports through go.bug.st/serial.
func DefaultPortFactory(path string, mode *bugst.Mode) (PortConn, error) {
	port, err := bugst.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// PortableSource is a ByteSource backed by go.bug.st/serial. It works on every
// platform that library supports but cannot program flow control.
type PortableSource struct {
	port      PortConn
	config    Config
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// OpenPortable opens cfg.Device with factory, or DefaultPortFactory when factory is nil.
func OpenPortable(cfg Config, factory PortFactory) (*PortableSource, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, &OpenError{Device: cfg.Device, Op: "config", Err: err}
	}
	if cfg.FlowControl != FlowNone {
		return nil, &OpenError{
			Device: cfg.Device,
			Op:     "config",
			Err:    fmt.Errorf("flow control %s not supported by portable backend", cfg.FlowControl),
		}
	}
	if factory == nil {
		factory = DefaultPortFactory
	}

	port, err := factory(cfg.Device, modeFromConfig(cfg))
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Op: "open", Err: err}
	}

	timeout := bugst.NoTimeout
	if cfg.TimeoutDeciseconds > 0 {
		timeout = time.Duration(cfg.TimeoutDeciseconds) * 100 * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, &OpenError{Device: cfg.Device, Op: "configure", Err: err}
	}

	log.Debug().
		Str("device", cfg.Device).
		Int("baud", cfg.BaudRate).
		Dur("timeout", timeout).
		Msg("opened portable serial port")

	return &PortableSource{port: port, config: cfg}, nil
}

func modeFromConfig(cfg Config) *bugst.Mode {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	switch cfg.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	}
	if cfg.StopBits == TwoStopBits {
		mode.StopBits = bugst.TwoStopBits
	}
	return mode
}

// Config returns the effective configuration of the port.
func (s *PortableSource) Config() Config { return s.config }

// Read returns (0, nil) when the configured timeout expires without data.
// After Close it returns ErrClosed.
func (s *PortableSource) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err == nil {
		return n, nil
	}

	var perr *bugst.PortError
	if errors.As(err, &perr) && perr.Code() == bugst.PortClosed {
		return n, ErrClosed
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return n, ErrClosed
	}
	return n, err
}

// Close releases the port. Safe to call multiple times.
func (s *PortableSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if cerr := s.port.Close(); cerr != nil {
			err = fmt.Errorf("failed to close serial port: %w", cerr)
		}
	})
	return err
}
