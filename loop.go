package serial

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// ByteSource is an already opened, already configured device. Read may block
// indefinitely and may return (0, nil) when no data was available.
type ByteSource interface {
	Read(p []byte) (n int, err error)
}

// Sink receives framed lines in order.
type Sink interface {
	WriteLine(line Line) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(line Line) error

func (f SinkFunc) WriteLine(line Line) error { return f(line) }

// WriterSink writes each line followed by a newline, like puts(3).
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) WriteLine(line Line) error {
	buf := make([]byte, 0, len(line.Data)+1)
	buf = append(buf, line.Data...)
	buf = append(buf, newline)
	if _, err := s.W.Write(buf); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// Loop drives a LineFramer from a ByteSource and delivers lines to a Sink.
// Only one Run may be active per Loop.
type Loop struct {
	Source ByteSource
	Framer *LineFramer
	Sink   Sink

	// ChunkSize is the number of bytes requested per read. Defaults to 1.
	ChunkSize int

	// FlushPartial emits pending bytes as a forced line when Run returns.
	FlushPartial bool
}

// Run reads until ctx is done, the source is closed, or a read or sink error
// occurs. The context is only checked between reads; to interrupt a blocked
// read, close the source. A closed source ends Run with a nil error, a
// cancelled context with ctx.Err(), and a failed read with a *ReadError.
func (l *Loop) Run(ctx context.Context) (err error) {
	if l.Source == nil || l.Framer == nil || l.Sink == nil {
		return errors.New("loop requires a source, a framer and a sink")
	}

	size := l.ChunkSize
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)

	if l.FlushPartial {
		defer func() {
			line, ok := l.Framer.Flush()
			if !ok {
				return
			}
			if werr := l.Sink.WriteLine(line); werr != nil && err == nil {
				err = fmt.Errorf("deliver partial line: %w", werr)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := l.Source.Read(buf)

		// bytes read alongside an error still belong to the stream
		if n > 0 {
			if ferr := l.Framer.FeedBytes(buf[:n], l.Sink.WriteLine); ferr != nil {
				return fmt.Errorf("deliver line: %w", ferr)
			}
		}

		if rerr != nil {
			if errors.Is(rerr, ErrClosed) {
				log.Debug().Msg("byte source closed, stopping read loop")
				return nil
			}
			log.Error().Err(rerr).Msg("failed to read from byte source")
			return &ReadError{Err: rerr}
		}

		if n == 0 {
			log.Trace().Msg("empty read, retrying")
		}
	}
}
