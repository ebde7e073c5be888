// Command serialcat prints newline-framed lines read from a serial device.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	serial "github.com/luhtfiimanal/go-serial-lines"
	"github.com/luhtfiimanal/go-serial-lines/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configPath   string
	backend      string
	parity       string
	flowControl  string
	baud         int
	dataBits     int
	stopBits     int
	minBytes     int
	timeoutDS    int
	capacity     int
	chunkSize    int
	flushPartial bool
	debug        bool
}

func main() {
	if err := newRootCmd(afero.NewOsFs(), os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "serialcat [flags] <device>",
		Short: "Print newline-framed lines read from a serial device",
		Long: `serialcat opens a serial device read-only, configures it (9600 8N1 by default)
and prints every line it receives. Lines longer than the buffer capacity minus
one byte are split into several output lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := resolveValues(cmd.Flags(), fs, opts, args[0])
			if err != nil {
				return err
			}
			setupLogging(stderr, vals.DebugLogging)
			// usage is for argument mistakes, not device failures
			cmd.SilenceUsage = true
			return run(cmd.Context(), vals, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	bindFlags(cmd.Flags(), opts)

	return cmd
}

func bindFlags(f *pflag.FlagSet, opts *options) {
	def := config.Defaults()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	f.StringVar(&opts.backend, "backend", def.Backend, "device backend: termios or portable")
	f.IntVarP(&opts.baud, "baud", "b", def.BaudRate, "baud rate")
	f.IntVar(&opts.dataBits, "data-bits", def.DataBits, "data bits (5-8)")
	f.StringVar(&opts.parity, "parity", def.Parity, "parity: none, odd or even")
	f.IntVar(&opts.stopBits, "stop-bits", def.StopBits, "stop bits (1 or 2)")
	f.StringVar(&opts.flowControl, "flow-control", def.FlowControl, "flow control: none, hardware or software")
	f.IntVar(&opts.minBytes, "min-bytes", def.MinBytes, "minimum bytes before a read returns (VMIN)")
	f.IntVar(&opts.timeoutDS, "timeout-ds", def.TimeoutDeciseconds, "read timeout in deciseconds (VTIME), 0 waits forever")
	f.IntVar(&opts.capacity, "capacity", def.BufferCapacity, "line buffer capacity in bytes, one byte is reserved")
	f.IntVar(&opts.chunkSize, "chunk-size", def.ReadChunkSize, "bytes requested per read")
	f.BoolVar(&opts.flushPartial, "flush-partial", def.FlushPartial, "print an unterminated line on exit")
	f.BoolVar(&opts.debug, "debug", def.DebugLogging, "enable debug logging")
}

// resolveValues layers defaults, the config file, and explicitly set flags.
func resolveValues(f *pflag.FlagSet, fs afero.Fs, opts *options, device string) (config.Values, error) {
	vals := config.Defaults()
	if opts.configPath != "" {
		loaded, err := config.Load(fs, opts.configPath)
		if err != nil {
			return vals, err
		}
		vals = loaded
	}

	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("backend", func() { vals.Backend = opts.backend })
	set("baud", func() { vals.BaudRate = opts.baud })
	set("data-bits", func() { vals.DataBits = opts.dataBits })
	set("parity", func() { vals.Parity = opts.parity })
	set("stop-bits", func() { vals.StopBits = opts.stopBits })
	set("flow-control", func() { vals.FlowControl = opts.flowControl })
	set("min-bytes", func() { vals.MinBytes = opts.minBytes })
	set("timeout-ds", func() { vals.TimeoutDeciseconds = opts.timeoutDS })
	set("capacity", func() { vals.BufferCapacity = opts.capacity })
	set("chunk-size", func() { vals.ReadChunkSize = opts.chunkSize })
	set("flush-partial", func() { vals.FlushPartial = opts.flushPartial })
	set("debug", func() { vals.DebugLogging = opts.debug })
	vals.Device = device

	if err := vals.Validate(); err != nil {
		return vals, err
	}
	return vals, nil
}

func setupLogging(w io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(level).
		With().Timestamp().Logger()
}

type byteSourceCloser interface {
	serial.ByteSource
	Close() error
}

func openSource(vals config.Values) (byteSourceCloser, error) {
	cfg, err := vals.SerialConfig()
	if err != nil {
		return nil, err
	}
	if vals.Backend == config.BackendPortable {
		return serial.OpenPortable(cfg, nil)
	}
	return openTermios(cfg)
}

func run(ctx context.Context, vals config.Values, stdout io.Writer) error {
	framer, err := serial.NewLineFramer(vals.BufferCapacity)
	if err != nil {
		return err
	}

	log.Info().Msgf("opening port %s", vals.Device)
	src, err := openSource(vals)
	if err != nil {
		log.Error().Err(err).Msgf("error in opening %s", vals.Device)
		return fmt.Errorf("failed to open %s: %w", vals.Device, err)
	}
	log.Info().Msgf("%s opened successfully", vals.Device)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// a blocked read only returns once the source is closed
	go func() {
		<-ctx.Done()
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close serial port")
		}
	}()
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close serial port")
		}
	}()

	loop := &serial.Loop{
		Source:       src,
		Framer:       framer,
		Sink:         serial.WriterSink{W: stdout},
		ChunkSize:    vals.ReadChunkSize,
		FlushPartial: vals.FlushPartial,
	}
	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading %s: %w", vals.Device, err)
	}
	log.Debug().Msg("read loop stopped")
	return nil
}
