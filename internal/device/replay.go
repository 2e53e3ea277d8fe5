package device

import (
	"fmt"
	"io"
	"os"
)

// Replay feeds a previously recorded device log back through the capture
// pipeline. Writes (the start command) are discarded.
type Replay struct {
	*LineReader
	f *os.File
}

type readDiscarder struct {
	io.Reader
}

func (readDiscarder) Write(p []byte) (int, error) {
	return len(p), nil
}

// OpenReplay opens a recorded log at path.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay log: %w", err)
	}
	return &Replay{
		LineReader: NewLineReader(readDiscarder{f}, false),
		f:          f,
	}, nil
}

// Name returns the log path.
func (r *Replay) Name() string {
	return r.f.Name()
}

// Close closes the log file.
func (r *Replay) Close() error {
	return r.f.Close()
}
