// Package device provides the input side of a capture: a serial port, a
// recorded log replay and a simulated sensor, all exposed as line sources.
package device

import (
	"bytes"
	"errors"
	"io"

	"github.com/fakeyudi/ppglog/internal/protocol"
)

// maxLineBytes bounds a line that never sees a newline (a device spewing
// binary noise). The partial buffer is emitted as a line once it grows past
// this.
const maxLineBytes = 4096

// LineReader assembles newline-terminated lines from a byte stream that may
// deliver them in arbitrary fragments. A trailing carriage return is dropped.
type LineReader struct {
	rw           io.ReadWriter
	buf          []byte
	chunk        []byte
	eofIsTimeout bool
}

// NewLineReader wraps rw. When eofIsTimeout is set, a zero-byte read reported
// as io.EOF is treated as a read timeout rather than the end of the stream;
// serial ports opened with a read timeout behave this way on POSIX systems.
func NewLineReader(rw io.ReadWriter, eofIsTimeout bool) *LineReader {
	return &LineReader{
		rw:           rw,
		chunk:        make([]byte, 256),
		eofIsTimeout: eofIsTimeout,
	}
}

// ReadLine returns the next complete line, decoded leniently. It returns an
// empty string and nil error when the underlying read times out.
func (r *LineReader) ReadLine() (string, error) {
	for {
		if line, ok := r.next(); ok {
			return line, nil
		}

		n, err := r.rw.Read(r.chunk)
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			if line, ok := r.next(); ok {
				return line, nil
			}
			if r.eofIsTimeout {
				return "", nil
			}
			// Flush a trailing line with no terminator before reporting EOF.
			if len(r.buf) > 0 {
				line := protocol.Decode(r.buf)
				r.buf = r.buf[:0]
				return line, nil
			}
			return "", io.EOF
		}
		if n == 0 {
			return "", nil
		}
	}
}

// next pops one buffered line if available.
func (r *LineReader) next() (string, bool) {
	i := bytes.IndexByte(r.buf, '\n')
	if i < 0 {
		if len(r.buf) < maxLineBytes {
			return "", false
		}
		i = len(r.buf)
	}
	line := protocol.Decode(bytes.TrimSuffix(r.buf[:i], []byte("\r")))
	if i < len(r.buf) {
		i++
	}
	r.buf = append(r.buf[:0], r.buf[i:]...)
	return line, true
}

// Write sends p to the device.
func (r *LineReader) Write(p []byte) (int, error) {
	return r.rw.Write(p)
}
