// Package config loads serialcat settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	serial "github.com/luhtfiimanal/go-serial-lines"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	BackendTermios  = "termios"
	BackendPortable = "portable"
)

// Values is the on-disk configuration. Every field has a default, so a file
// only needs to list what it changes.
type Values struct {
	Device             string `toml:"device" validate:"required"`
	Backend            string `toml:"backend" validate:"oneof=termios portable"`
	Parity             string `toml:"parity" validate:"oneof=none odd even"`
	FlowControl        string `toml:"flow_control" validate:"oneof=none hardware software"`
	BaudRate           int    `toml:"baud_rate" validate:"gt=0"`
	DataBits           int    `toml:"data_bits" validate:"oneof=5 6 7 8"`
	StopBits           int    `toml:"stop_bits" validate:"oneof=1 2"`
	MinBytes           int    `toml:"min_bytes" validate:"gte=0,lte=255"`
	TimeoutDeciseconds int    `toml:"timeout_deciseconds" validate:"gte=0,lte=255"`
	BufferCapacity     int    `toml:"buffer_capacity" validate:"gte=2"`
	ReadChunkSize      int    `toml:"read_chunk_size" validate:"gte=1"`
	FlushPartial       bool   `toml:"flush_partial"`
	DebugLogging       bool   `toml:"debug_logging"`
}

// Defaults mirrors serial.DefaultConfig with a blank device.
func Defaults() Values {
	return Values{
		Backend:        BackendTermios,
		BaudRate:       9600,
		DataBits:       8,
		Parity:         "none",
		StopBits:       1,
		FlowControl:    "none",
		MinBytes:       1,
		BufferCapacity: serial.DefaultCapacity,
		ReadChunkSize:  1,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path from fs on top of Defaults. The result is not validated;
// callers fill in command line overrides first and then call Validate.
func Load(fs afero.Fs, path string) (Values, error) {
	vals := Defaults()

	if _, err := fs.Stat(path); err != nil {
		return vals, fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return vals, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &vals); err != nil {
		return vals, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	log.Debug().Str("path", path).Msg("loaded config file")
	return vals, nil
}

// Validate checks every field and reports all failures at once.
func (v *Values) Validate() error {
	v.Parity = strings.ToLower(v.Parity)
	v.FlowControl = strings.ToLower(v.FlowControl)
	v.Backend = strings.ToLower(v.Backend)

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation failed: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// SerialConfig converts validated values to a serial.Config.
func (v *Values) SerialConfig() (serial.Config, error) {
	parity, err := serial.ParseParity(v.Parity)
	if err != nil {
		return serial.Config{}, err
	}
	flow, err := serial.ParseFlowControl(v.FlowControl)
	if err != nil {
		return serial.Config{}, err
	}
	return serial.Config{
		Device:             v.Device,
		BaudRate:           v.BaudRate,
		DataBits:           v.DataBits,
		Parity:             parity,
		StopBits:           serial.StopBits(v.StopBits),
		FlowControl:        flow,
		MinBytes:           uint8(v.MinBytes),
		TimeoutDeciseconds: uint8(v.TimeoutDeciseconds),
		LineCapacity:       v.BufferCapacity,
	}, nil
}
