// Package run defines the durable run record and its persistence contract.
// A run is a long-running operation whose progress streams through the hub;
// the record here is what survives the stream.
package run

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("run not found")

// Status is the durable lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TerminalEventType maps a terminal status to the run event type that closes
// the stream for that outcome.
func (s Status) TerminalEventType() models.RunEventType {
	switch s {
	case StatusFailed:
		return models.RunEventFailed
	case StatusCancelled:
		return models.RunEventCancelled
	default:
		return models.RunEventCompleted
	}
}

// Run is one durable run record.
type Run struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Input     string    `json:"input"`
	Status    Status    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the run persistence collaborator. The stream bridge touches it
// only at connect time and at cancellation; the runner owns the rest of the
// lifecycle.
type Store interface {
	Create(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// SetStatus transitions the run and reports whether the transition
	// landed. Transitions out of a terminal state are ignored: the stored
	// record comes back unchanged with changed=false. That report is what
	// lets completion and cancellation race without either publishing a
	// second terminal event.
	SetStatus(ctx context.Context, id string, status Status, summary, errMsg string) (record *Run, changed bool, err error)
}
