package config

import (
	"testing"

	serial "github.com/luhtfiimanal/go-serial-lines"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchLibrary(t *testing.T) {
	t.Parallel()

	vals := Defaults()
	vals.Device = "/dev/ttyUSB0"
	require.NoError(t, vals.Validate())

	cfg, err := vals.SerialConfig()
	require.NoError(t, err)
	assert.Equal(t, serial.DefaultConfig("/dev/ttyUSB0"), cfg)
	assert.Equal(t, serial.DefaultCapacity, vals.BufferCapacity)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	data := `
device = "/dev/ttyACM0"
baud_rate = 115200
parity = "Even"
stop_bits = 2
buffer_capacity = 128
flush_partial = true
`
	require.NoError(t, afero.WriteFile(fs, "/etc/serialcat.toml", []byte(data), 0o600))

	vals, err := Load(fs, "/etc/serialcat.toml")
	require.NoError(t, err)
	require.NoError(t, vals.Validate())

	assert.Equal(t, "/dev/ttyACM0", vals.Device)
	assert.Equal(t, 115200, vals.BaudRate)
	assert.Equal(t, "even", vals.Parity)
	assert.Equal(t, 2, vals.StopBits)
	assert.Equal(t, 128, vals.BufferCapacity)
	assert.True(t, vals.FlushPartial)

	// untouched keys keep their defaults
	assert.Equal(t, 8, vals.DataBits)
	assert.Equal(t, BackendTermios, vals.Backend)
	assert.Equal(t, 1, vals.MinBytes)

	cfg, err := vals.SerialConfig()
	require.NoError(t, err)
	assert.Equal(t, serial.ParityEven, cfg.Parity)
	assert.Equal(t, serial.TwoStopBits, cfg.StopBits)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(afero.NewMemMapFs(), "/nope.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat config file")
}

func TestLoad_BadTOML(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.toml", []byte("baud_rate = [oops"), 0o600))

	_, err := Load(fs, "/bad.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(v *Values)
		wantErr string
	}{
		{name: "missing device", mutate: func(v *Values) { v.Device = "" }, wantErr: "Device"},
		{name: "bad backend", mutate: func(v *Values) { v.Backend = "usb" }, wantErr: "Backend"},
		{name: "bad parity", mutate: func(v *Values) { v.Parity = "mark" }, wantErr: "Parity"},
		{name: "bad flow control", mutate: func(v *Values) { v.FlowControl = "dtr" }, wantErr: "FlowControl"},
		{name: "zero baud", mutate: func(v *Values) { v.BaudRate = 0 }, wantErr: "BaudRate"},
		{name: "nine data bits", mutate: func(v *Values) { v.DataBits = 9 }, wantErr: "DataBits"},
		{name: "three stop bits", mutate: func(v *Values) { v.StopBits = 3 }, wantErr: "StopBits"},
		{name: "vmin too large", mutate: func(v *Values) { v.MinBytes = 256 }, wantErr: "MinBytes"},
		{name: "negative vtime", mutate: func(v *Values) { v.TimeoutDeciseconds = -1 }, wantErr: "TimeoutDeciseconds"},
		{name: "capacity too small", mutate: func(v *Values) { v.BufferCapacity = 1 }, wantErr: "BufferCapacity"},
		{name: "zero chunk", mutate: func(v *Values) { v.ReadChunkSize = 0 }, wantErr: "ReadChunkSize"},
		{name: "case insensitive", mutate: func(v *Values) { v.FlowControl = "HARDWARE"; v.Backend = "Portable" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vals := Defaults()
			vals.Device = "/dev/ttyUSB0"
			tt.mutate(&vals)

			err := vals.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
