package models

import (
	"errors"
	"time"
)

// RunStatus is the outcome of one ingestion run.
type RunStatus string

const (
	// RunUpdated means a new snapshot was written.
	RunUpdated RunStatus = "updated"
	// RunSkipped means the source date matched the live snapshot.
	RunSkipped RunStatus = "skipped"
	// RunFailed means no snapshot could be built.
	RunFailed RunStatus = "failed"
)

// ItemFailure records why one item was dropped from a run.
type ItemFailure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Run is the journal record of one ingestion run.
type Run struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	SourceDate   *string       `json:"source_date"`
	Status       RunStatus     `json:"status"`
	ItemsTotal   int           `json:"items_total"`
	ItemsOK      int           `json:"items_ok"`
	LedgersAdded int           `json:"ledgers_added"`
	Message      string        `json:"message,omitempty"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// Validate checks run field constraints.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	switch r.Status {
	case RunUpdated, RunSkipped, RunFailed:
	default:
		return errors.New("run status must be one of: updated, skipped, failed")
	}
	if r.StartedAt.IsZero() {
		return errors.New("run start time must be set")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finished at must be >= started at")
	}
	if r.ItemsOK < 0 || r.ItemsOK > r.ItemsTotal {
		return errors.New("items ok must be between 0 and items total")
	}
	return nil
}
