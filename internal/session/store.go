package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/ppglog/internal/fsutil"
)

// ErrNoCapture is returned by Load when no capture record exists on disk.
var ErrNoCapture = errors.New("no active capture")

// StaleError is returned by Load alongside the record when the process that
// wrote it is gone, typically after a crash or kill -9.
type StaleError struct {
	Capture *Capture
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale capture record from pid %d (process no longer running)", e.Capture.PID)
}

// BusyError is returned by Claim when a live capture already owns the record.
type BusyError struct {
	Capture *Capture
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("capture already in progress on %s (pid %d, started at %s)",
		e.Capture.Source, e.Capture.PID, e.Capture.StartTime.Format(time.RFC3339))
}

// Store persists the record of the capture in progress.
type Store interface {
	// Claim records c as the active capture. It fails with *BusyError while
	// another live process holds the record, unless force is set. Stale
	// records are replaced.
	Claim(c *Capture, force bool) error
	// Save overwrites the record with updated progress.
	Save(c *Capture) error
	// Load returns the record, ErrNoCapture when there is none, or the record
	// together with a *StaleError when its process has exited.
	Load() (*Capture, error)
	Delete() error
}

// diskStore keeps the record as JSON in the XDG data directory.
type diskStore struct {
	path  string // full path to capture.json
	alive func(pid int) bool
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/ppglog/capture.json or ~/.local/share/ppglog/capture.json
func NewStore() (Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "capture.json"), alive: processAlive}, nil
}

// dataDir returns the ppglog-specific XDG data directory.
func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "ppglog"), nil
}

func (d *diskStore) Claim(c *Capture, force bool) error {
	existing, err := d.Load()
	var stale *StaleError
	switch {
	case errors.Is(err, ErrNoCapture), errors.As(err, &stale):
	case err != nil:
		return err
	case !force:
		return &BusyError{Capture: existing}
	}
	return d.Save(c)
}

func (d *diskStore) Save(c *Capture) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist capture state: %w", err)
	}
	if err := fsutil.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist capture state: %w", err)
	}
	return nil
}

func (d *diskStore) Load() (*Capture, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCapture
		}
		return nil, fmt.Errorf("failed to read capture state: %w", err)
	}

	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse capture state: %w", err)
	}
	if !d.alive(c.PID) {
		return &c, &StaleError{Capture: &c}
	}
	return &c, nil
}

// Delete removes the capture record from disk. A missing record is not an error.
func (d *diskStore) Delete() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete capture state: %w", err)
	}
	return nil
}
