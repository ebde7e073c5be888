package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by a byte source read after Close was called.
	ErrClosed = errors.New("serial: port closed")

	// ErrInvalidCapacity is returned when a framer is built with room for
	// less than one byte plus its reserved slot.
	ErrInvalidCapacity = errors.New("serial: line buffer capacity must be at least 2")

	// ErrUnsupportedBaudRate is returned for rates the backend cannot program.
	ErrUnsupportedBaudRate = errors.New("serial: unsupported baud rate")
)

// OpenError reports that a device could not be opened or configured.
// The read loop must never be started after an OpenError.
type OpenError struct {
	Device string
	Op     string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError reports a fatal read failure. It is not retried.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "read failed: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error { return e.Err }
