// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/hddf2/pilot/pkg/core"
)

// ErrNoEngagement is returned when records arrive before StartEngagement.
var ErrNoEngagement = errors.New("no engagement started")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Engagement management
	StartEngagement(e *core.Engagement) error
	EndEngagement() error

	// Per-tick recording
	RecordControl(r *core.ControlRecord) error
	RecordThreat(r *core.ThreatRecord) error
	RecordPhase(r *core.PhaseRecord) error
	RecordLaunch(r *core.LaunchRecord) error
}

// Exporter is an optional interface for backends that write the
// engagement to a file when it ends.
type Exporter interface {
	ExportedFilePath() string
}
