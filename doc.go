// Package serial reads a serial device and reassembles its byte stream into
// bounded text lines.
//
// The core is LineFramer, a small state machine fed one byte at a time. A
// newline byte ends a line and is not part of it. When the fixed-size buffer
// fills up before a newline arrives, the buffer is emitted anyway as a forced
// line (Line.Forced) and accumulation starts over, so no byte is ever dropped
// and no line is longer than the buffer capacity minus one.
//
// Loop drives a LineFramer from any ByteSource. Two sources are provided:
//   - Port: raw termios on Linux via golang.org/x/sys/unix, killable through a
//     self-pipe so Close unblocks a pending read
//   - PortableSource: go.bug.st/serial, for other platforms
//
// The package does not write to the device.
//
// Example usage:
//
//	port, err := serial.Open(serial.DefaultConfig("/dev/ttyUSB0"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	framer, _ := serial.NewLineFramer(serial.DefaultCapacity)
//	loop := &serial.Loop{
//	    Source: port,
//	    Framer: framer,
//	    Sink:   serial.WriterSink{W: os.Stdout},
//	}
//
//	// to stop, call port.Close() from another goroutine
//	if err := loop.Run(ctx); err != nil {
//	    log.Println("read loop:", err)
//	}
package serial
