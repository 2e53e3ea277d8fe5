package session

import (
	"time"

	"github.com/google/uuid"
)

// Capture describes the capture currently in progress. It is written when a
// capture starts, refreshed as it runs, and removed once the table is saved.
type Capture struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"` // port path, replay file, or "simulator"
	PID            int        `json:"pid"`
	StartTime      time.Time  `json:"start_time"`
	Phase          string     `json:"phase"`
	HeaderCaptured bool       `json:"header_captured"`
	Deadline       *time.Time `json:"deadline,omitempty"` // set once the start command is sent
	Rows           int        `json:"rows"`
	OutputDir      string     `json:"output_dir"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewCapture returns a record for a capture reading from source that has
// just started.
func NewCapture(source, outputDir string, pid int, now time.Time) *Capture {
	return &Capture{
		ID:        uuid.NewString(),
		Source:    source,
		PID:       pid,
		StartTime: now,
		Phase:     "handshaking",
		OutputDir: outputDir,
		UpdatedAt: now,
	}
}
