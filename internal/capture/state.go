package capture

import (
	"errors"
	"fmt"
	"time"
)

// Phase is the controller's position in the capture protocol.
type Phase int

const (
	Handshaking Phase = iota
	Collecting
	Done
)

func (p Phase) String() string {
	switch p {
	case Handshaking:
		return "handshaking"
	case Collecting:
		return "collecting"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome records why a session reached Done.
type Outcome int

const (
	Pending Outcome = iota
	DeadlineReached
	Interrupted
	StreamEnded
	DeviceFailed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case DeadlineReached:
		return "deadline reached"
	case Interrupted:
		return "interrupted"
	case StreamEnded:
		return "stream ended"
	case DeviceFailed:
		return "device failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// State is the controller's mutable session state. Callers only ever see
// copies of it.
type State struct {
	Phase          Phase
	HeaderCaptured bool
	Deadline       time.Time // zero until Collecting starts
	Rows           int       // data rows appended so far
	Outcome        Outcome
}

var (
	// ErrInterrupted is returned when the context is cancelled before the
	// device reports ready. No table is produced in that case.
	ErrInterrupted = errors.New("capture interrupted before device was ready")

	// ErrNoReadySignal is returned when the stream ends during the handshake.
	ErrNoReadySignal = errors.New("stream ended before device reported ready")
)

// DeviceError wraps a read or write failure on the line source.
type DeviceError struct {
	Op    string // "read", "write"
	Phase Phase
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s failed while %s: %v", e.Op, e.Phase, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
