package serial

import (
	"fmt"
	"strings"
)

// Parity selects the parity bit mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// ParseParity accepts "none", "odd" or "even".
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ParityNone, nil
	case "odd":
		return ParityOdd, nil
	case "even":
		return ParityEven, nil
	}
	return ParityNone, fmt.Errorf("unknown parity %q", s)
}

// StopBits is the number of stop bits per character.
type StopBits int

const (
	OneStopBit  StopBits = 1
	TwoStopBits StopBits = 2
)

// FlowControl selects how the line is throttled.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowHardware:
		return "hardware"
	case FlowSoftware:
		return "software"
	default:
		return fmt.Sprintf("FlowControl(%d)", int(f))
	}
}

// ParseFlowControl accepts "none", "hardware" (RTS/CTS) or "software" (XON/XOFF).
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return FlowNone, nil
	case "hardware", "rtscts":
		return FlowHardware, nil
	case "software", "xonxoff":
		return FlowSoftware, nil
	}
	return FlowNone, fmt.Errorf("unknown flow control %q", s)
}

// Config holds configuration parameters for opening a serial port.
// Zero DataBits, StopBits and BaudRate take the defaults of DefaultConfig.
type Config struct {
	Device      string
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	FlowControl FlowControl

	// MinBytes and TimeoutDeciseconds map to VMIN and VTIME.
	// MinBytes=1, TimeoutDeciseconds=0 blocks until at least one byte arrives.
	// With MinBytes=0 a non-zero timeout makes reads return (0, nil) when it
	// expires; MinBytes=0 with no timeout still blocks for data.
	MinBytes           uint8
	TimeoutDeciseconds uint8

	// LineCapacity sizes the framer behind Port.ReadLine and Port.ReadLinesLoop.
	// Zero means DefaultCapacity.
	LineCapacity int
}

// DefaultConfig returns 9600 8N1 without flow control, blocking for one byte.
func DefaultConfig(device string) Config {
	return Config{
		Device:       device,
		BaudRate:     9600,
		DataBits:     8,
		Parity:       ParityNone,
		StopBits:     OneStopBit,
		FlowControl:  FlowNone,
		MinBytes:     1,
		LineCapacity: DefaultCapacity,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Device)
	if c.BaudRate == 0 {
		c.BaudRate = def.BaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = def.DataBits
	}
	if c.StopBits == 0 {
		c.StopBits = def.StopBits
	}
	if c.LineCapacity == 0 {
		c.LineCapacity = DefaultCapacity
	}
	return c
}

func (c Config) validate() error {
	if c.Device == "" {
		return fmt.Errorf("device path is empty")
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("invalid data bits %d", c.DataBits)
	}
	if c.StopBits != OneStopBit && c.StopBits != TwoStopBits {
		return fmt.Errorf("invalid stop bits %d", c.StopBits)
	}
	if c.Parity < ParityNone || c.Parity > ParityEven {
		return fmt.Errorf("invalid parity %v", c.Parity)
	}
	if c.LineCapacity < 2 {
		return ErrInvalidCapacity
	}
	if c.FlowControl < FlowNone || c.FlowControl > FlowSoftware {
		return fmt.Errorf("invalid flow control %v", c.FlowControl)
	}
	return nil
}
