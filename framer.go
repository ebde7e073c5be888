package serial

// DefaultCapacity is the accumulation buffer size used when none is configured.
// One slot is always kept in reserve, so lines are at most DefaultCapacity-1 bytes.
const DefaultCapacity = 32

const newline = '\n'

// Line is a single framed line. Data never contains a newline byte.
//
// Forced is set when the line was emitted because the buffer filled up before
// a newline arrived; the next line continues the same logical record.
type Line struct {
	Data   []byte
	Forced bool
}

func (l Line) String() string {
	return string(l.Data)
}

// LineFramer splits a byte stream into lines of bounded length.
// It is not safe for concurrent use; give every stream its own framer.
type LineFramer struct {
	buf    []byte
	cursor int
}

// NewLineFramer returns a framer whose buffer holds capacity bytes.
func NewLineFramer(capacity int) (*LineFramer, error) {
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}
	return &LineFramer{buf: make([]byte, capacity)}, nil
}

// Capacity returns the buffer size the framer was created with.
func (f *LineFramer) Capacity() int { return len(f.buf) }

// Cursor returns the index of the next free slot in the buffer.
func (f *LineFramer) Cursor() int { return f.cursor }

// Pending returns a copy of the bytes accumulated since the last emission.
func (f *LineFramer) Pending() []byte {
	return append([]byte(nil), f.buf[:f.cursor]...)
}

// Reset drops any pending bytes and returns the framer to its initial state.
func (f *LineFramer) Reset() { f.cursor = 0 }

// Feed consumes one byte and reports whether it completed a line.
//
// A newline emits the pending bytes without the newline. A byte arriving when
// cursor >= capacity-2 is appended and the buffer is emitted as a forced line.
// Any other byte is accumulated.
func (f *LineFramer) Feed(b byte) (Line, bool) {
	if b == newline {
		return f.emit(false), true
	}

	f.buf[f.cursor] = b
	f.cursor++

	// cursor was >= capacity-2 before the append
	if f.cursor >= len(f.buf)-1 {
		return f.emit(true), true
	}
	return Line{}, false
}

// FeedBytes feeds every byte of p in order and calls emit for each completed
// line. It stops at the first error returned by emit; bytes after the one that
// completed the failing line are not consumed.
func (f *LineFramer) FeedBytes(p []byte, emit func(Line) error) error {
	for _, b := range p {
		line, ok := f.Feed(b)
		if !ok {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	return nil
}

// Flush emits the pending bytes as a forced line. It reports false when
// nothing is pending.
func (f *LineFramer) Flush() (Line, bool) {
	if f.cursor == 0 {
		return Line{}, false
	}
	return f.emit(true), true
}

func (f *LineFramer) emit(forced bool) Line {
	line := Line{
		Data:   make([]byte, f.cursor),
		Forced: forced,
	}
	copy(line.Data, f.buf[:f.cursor])
	f.cursor = 0
	return line
}
