// Package capture drives a single capture session against a line source:
// it waits for the device handshake, collects data rows until a deadline,
// and hands back the accumulated table.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fakeyudi/ppglog/internal/protocol"
)

// LineSource is the device side of a session.
//
// ReadLine blocks for at most the source's read timeout. On timeout it returns
// an empty string and a nil error. io.EOF means the stream is finished. A
// non-nil error is never accompanied by a line.
type LineSource interface {
	ReadLine() (string, error)
	Write(p []byte) (int, error)
}

// Observer is notified as the session progresses. Calls happen on the
// controller's goroutine and must not block for long.
type Observer interface {
	PhaseChanged(s State)
	HeaderCaptured(columns []string)
	RowAppended(s State)
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(State)      {}
func (nopObserver) HeaderCaptured([]string) {}
func (nopObserver) RowAppended(State)       {}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger used for phase transitions and protocol noise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithObserver registers an observer for progress updates.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller runs the capture state machine. It is single-use and not safe
// for concurrent use.
type Controller struct {
	src      LineSource
	duration time.Duration
	now      func() time.Time
	log      *slog.Logger
	observer Observer

	state State
	table *Table
}

// New returns a controller that collects for duration once the device is ready.
func New(src LineSource, duration time.Duration, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		duration: duration,
		now:      time.Now,
		log:      slog.Default(),
		observer: nopObserver{},
		table:    &Table{Rows: [][]string{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current session state.
func (c *Controller) State() State {
	return c.state
}

// Table returns the accumulated table. It should only be read once the
// session is Done.
func (c *Controller) Table() *Table {
	return c.table
}

// Run performs the handshake and the timed collection. When the handshake
// fails or is interrupted no table is returned. Once collection has started a
// table is always returned, even alongside a device error.
func (c *Controller) Run(ctx context.Context) (*Table, error) {
	if err := c.Handshake(ctx); err != nil {
		return nil, err
	}
	err := c.Collect(ctx)
	return c.table, err
}

// Handshake reads lines until the device reports ready, capturing the first
// header seen on the way, then sends the start command and arms the deadline.
func (c *Controller) Handshake(ctx context.Context) error {
	if c.state.Phase != Handshaking {
		return fmt.Errorf("handshake called while %s", c.state.Phase)
	}
	c.log.Info("waiting for device to be ready")

	for {
		if ctx.Err() != nil {
			c.finish(Interrupted)
			return ErrInterrupted
		}

		line, err := c.src.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.finish(StreamEnded)
				return ErrNoReadySignal
			}
			c.finish(DeviceFailed)
			return &DeviceError{Op: "read", Phase: Handshaking, Err: err}
		}

		ev := protocol.Classify(line)
		switch ev.Kind {
		case protocol.Header:
			c.acceptHeader(ev.Fields)
		case protocol.ReadySignal:
			return c.start()
		case protocol.Unknown:
			c.log.Debug("ignoring line", "phase", c.state.Phase, "line", line)
		}
	}
}

// start sends the start command and moves to Collecting.
func (c *Controller) start() error {
	c.log.Info("device is ready")
	if _, err := c.src.Write(protocol.StartCommand); err != nil {
		c.finish(DeviceFailed)
		return &DeviceError{Op: "write", Phase: Handshaking, Err: err}
	}
	c.state.Deadline = c.now().Add(c.duration)
	c.state.Phase = Collecting
	c.log.Info("start command sent", "duration", c.duration, "deadline", c.state.Deadline.Format(time.RFC3339))
	c.observer.PhaseChanged(c.state)
	return nil
}

// Collect reads data rows until the deadline passes, the context is cancelled
// or the stream ends. Cancellation is not an error: whatever was collected so
// far stays in the table.
func (c *Controller) Collect(ctx context.Context) error {
	if c.state.Phase != Collecting {
		return fmt.Errorf("collect called while %s", c.state.Phase)
	}

	for {
		if ctx.Err() != nil {
			c.finish(Interrupted)
			return nil
		}
		if !c.now().Before(c.state.Deadline) {
			c.finish(DeadlineReached)
			return nil
		}

		line, err := c.src.ReadLine()
		// A line that lands after the interrupt is dropped, matching a read
		// that was cut short.
		if ctx.Err() != nil {
			c.finish(Interrupted)
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.finish(StreamEnded)
				return nil
			}
			c.finish(DeviceFailed)
			return &DeviceError{Op: "read", Phase: Collecting, Err: err}
		}

		ev := protocol.Classify(line)
		switch ev.Kind {
		case protocol.Header:
			c.acceptHeader(ev.Fields)
		case protocol.DataRow:
			c.table.AppendRow(ev.Fields)
			c.state.Rows++
			c.observer.RowAppended(c.state)
		case protocol.Unknown:
			c.log.Debug("ignoring line", "phase", c.state.Phase, "line", line)
		}
	}
}

// acceptHeader stores the header the first time one is seen.
func (c *Controller) acceptHeader(columns []string) {
	if !c.table.AppendHeader(columns) {
		c.log.Debug("duplicate header ignored", "phase", c.state.Phase, "columns", columns)
		return
	}
	c.state.HeaderCaptured = true
	c.log.Info("header received", "phase", c.state.Phase, "columns", columns)
	c.observer.HeaderCaptured(columns)
}

func (c *Controller) finish(o Outcome) {
	c.state.Phase = Done
	c.state.Outcome = o
	c.log.Info("capture finished", "outcome", o, "rows", c.state.Rows, "header", c.state.HeaderCaptured)
	c.observer.PhaseChanged(c.state)
}
