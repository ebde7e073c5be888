//go:build linux

package serial

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Port provides blocking, killable, byte-level read access to a Linux serial port.
// Read may be called from one goroutine while Close is called from another.
type Port struct {
	fd        int
	file      *os.File
	done      chan struct{}
	closeOnce sync.Once
	config    Config
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd

	// framer backs ReadLine and ReadLinesLoop
	framer *LineFramer
}

// Open opens a serial port read-only and programs it from cfg.
// The port is put in raw mode; reads block according to MinBytes and TimeoutDeciseconds.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, &OpenError{Device: cfg.Device, Op: "config", Err: err}
	}

	baud, ok := baudToUnix(cfg.BaudRate)
	if !ok {
		return nil, &OpenError{Device: cfg.Device, Op: "config", Err: ErrUnsupportedBaudRate}
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Op: "open", Err: err}
	}

	if err := configure(fd, cfg, baud); err != nil {
		_ = unix.Close(fd)
		return nil, &OpenError{Device: cfg.Device, Op: "configure", Err: err}
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return nil, &OpenError{Device: cfg.Device, Op: "configure", Err: err}
	}

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		_ = unix.Close(fd)
		return nil, &OpenError{Device: cfg.Device, Op: "pipe", Err: err}
	}

	log.Debug().
		Str("device", cfg.Device).
		Int("baud", cfg.BaudRate).
		Int("data_bits", cfg.DataBits).
		Stringer("parity", cfg.Parity).
		Int("stop_bits", int(cfg.StopBits)).
		Stringer("flow_control", cfg.FlowControl).
		Msg("opened serial port")

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device),
		done:   make(chan struct{}),
		config: cfg,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
		framer: &LineFramer{buf: make([]byte, cfg.LineCapacity)},
	}, nil
}

func configure(fd int, cfg Config, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS
	termios.Cflag |= unix.CREAD | unix.CLOCAL

	switch cfg.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	switch cfg.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	}

	if cfg.StopBits == TwoStopBits {
		termios.Cflag |= unix.CSTOPB
	}

	switch cfg.FlowControl {
	case FlowHardware:
		termios.Cflag |= unix.CRTSCTS
	case FlowSoftware:
		termios.Iflag |= unix.IXON | unix.IXOFF | unix.IXANY
	}

	// Baud rate
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	termios.Cc[unix.VMIN] = cfg.MinBytes
	termios.Cc[unix.VTIME] = cfg.TimeoutDeciseconds

	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

// Config returns the effective configuration of the port.
func (p *Port) Config() Config { return p.config }

// Read blocks until the device has data or the port is closed.
// With MinBytes=0 and TimeoutDeciseconds>0 it returns (0, nil) once the
// timeout passes without data. After Close it returns ErrClosed.
func (p *Port) Read(buf []byte) (int, error) {
	timeout := -1
	if p.config.MinBytes == 0 && p.config.TimeoutDeciseconds > 0 {
		timeout = int(p.config.TimeoutDeciseconds) * 100
	}

	for {
		// fds may already be closed and reused
		select {
		case <-p.done:
			return 0, ErrClosed
		default:
		}

		// Use poll to wait for data or kill signal
		pfd := []unix.PollFd{
			{Fd: int32(p.fd), Events: unix.POLLIN},
			{Fd: int32(p.pipeR), Events: unix.POLLIN},
		}
		ready, err := unix.Poll(pfd, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		// Check killability
		select {
		case <-p.done:
			return 0, ErrClosed
		default:
		}
		if err != nil {
			return 0, err
		}
		if ready == 0 {
			return 0, nil
		}

		if pfd[1].Revents&unix.POLLIN != 0 {
			return 0, ErrClosed
		}
		// hangup and error conditions surface through read
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			n, err := p.file.Read(buf)
			if err != nil && p.closing(err) {
				return n, ErrClosed
			}
			return n, err
		}
	}
}

// closing reports whether a read error was caused by Close racing the read.
func (p *Port) closing(err error) bool {
	select {
	case <-p.done:
		return true
	default:
	}
	return errors.Is(err, os.ErrClosed)
}

// ReadLine blocks until one line has been framed or an error occurs.
// Lines longer than Config.LineCapacity-1 bytes are returned in forced chunks.
// Bytes read past the end of the line are kept for the next call.
func (p *Port) ReadLine() (Line, error) {
	var b [1]byte
	for {
		n, err := p.Read(b[:])
		if n > 0 {
			if line, ok := p.framer.Feed(b[0]); ok {
				return line, nil
			}
		}
		if err != nil {
			return Line{}, err
		}
	}
}

// ReadLinesLoop continuously reads lines from the serial port and invokes onLine for each one.
// Lines are framed with Config.LineCapacity, so longer lines arrive as forced chunks.
// If a read fails, onError is called and the loop exits. Close ends the loop without calling onError.
func (p *Port) ReadLinesLoop(onLine func(Line), onError func(error)) {
	loop := &Loop{
		Source: p,
		Framer: p.framer,
		Sink: SinkFunc(func(line Line) error {
			onLine(line)
			return nil
		}),
		ChunkSize: 4096,
	}
	if err := loop.Run(context.Background()); err != nil {
		onError(err)
	}
}

// Close closes the serial port and unblocks any Read, ReadLine or ReadLinesLoop calls.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		_, _ = unix.Write(p.pipeW, []byte{1})
		err = p.file.Close()
		_ = unix.Close(p.pipeR)
		_ = unix.Close(p.pipeW)
		log.Debug().Str("device", p.config.Device).Msg("closed serial port")
	})
	return err
}
