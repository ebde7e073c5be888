package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/luhtfiimanal/go-serial-lines/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RequiresDevice(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(afero.NewMemMapFs(), &stdout, &stderr)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
	assert.Contains(t, stdout.String()+stderr.String(), "Usage:")
}

func TestRootCmd_OpenFailureIsFatal(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(afero.NewMemMapFs(), &stdout, &stderr)
	missing := filepath.Join(t.TempDir(), "ttyMISSING")
	cmd.SetArgs([]string{missing})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
	assert.Empty(t, stdout.String())
}

func TestRootCmd_InvalidFlag(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(afero.NewMemMapFs(), &stdout, &stderr)
	cmd.SetArgs([]string{"--capacity", "1", "/dev/ttyUSB0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BufferCapacity")
}

func TestResolveValues_FlagsOverrideFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.toml", []byte(`
baud_rate = 57600
parity = "odd"
buffer_capacity = 64
`), 0o600))

	opts := &options{}
	flags := pflag.NewFlagSet("serialcat", pflag.ContinueOnError)
	bindFlags(flags, opts)
	require.NoError(t, flags.Parse([]string{"--config", "/cfg.toml", "--baud", "115200"}))

	vals, err := resolveValues(flags, fs, opts, "/dev/ttyS1")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", vals.Device)
	assert.Equal(t, 115200, vals.BaudRate, "flag wins over file")
	assert.Equal(t, "odd", vals.Parity, "file wins over default")
	assert.Equal(t, 64, vals.BufferCapacity)
	assert.Equal(t, config.Defaults().DataBits, vals.DataBits)
}

func TestResolveValues_NoConfigFile(t *testing.T) {
	t.Parallel()

	opts := &options{}
	flags := pflag.NewFlagSet("serialcat", pflag.ContinueOnError)
	bindFlags(flags, opts)
	require.NoError(t, flags.Parse([]string{"--flush-partial", "--backend", "portable"}))

	vals, err := resolveValues(flags, afero.NewMemMapFs(), opts, "COM4")
	require.NoError(t, err)
	assert.True(t, vals.FlushPartial)
	assert.Equal(t, config.BackendPortable, vals.Backend)
	assert.Equal(t, 9600, vals.BaudRate)
}

func TestResolveValues_MissingConfigFile(t *testing.T) {
	t.Parallel()

	opts := &options{}
	flags := pflag.NewFlagSet("serialcat", pflag.ContinueOnError)
	bindFlags(flags, opts)
	require.NoError(t, flags.Parse([]string{"--config", "/absent.toml"}))

	_, err := resolveValues(flags, afero.NewMemMapFs(), opts, "/dev/ttyUSB0")
	require.Error(t, err)
}
