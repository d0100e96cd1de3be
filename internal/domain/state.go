package domain

import "time"

// LeadStateStatus is the LeadSequenceState.status enum.
type LeadStateStatus string

const (
	StatusPending   LeadStateStatus = "PENDING"
	StatusRunning   LeadStateStatus = "RUNNING"
	StatusCompleted LeadStateStatus = "COMPLETED"
	StatusFailed    LeadStateStatus = "FAILED"
	StatusPaused    LeadStateStatus = "PAUSED"
)

// Enqueueable reports whether a state in this status may have a new outbox
// row enqueued for it by the Scheduler (spec.md §4.1 eligibility query).
func (s LeadStateStatus) Enqueueable() bool {
	return s == StatusPending || s == StatusRunning
}

// LeadSequenceState is the per-lead cursor through a Sequence — one row per
// (lead, sequence) enrollment.
type LeadSequenceState struct {
	ID           string
	LeadID       string
	SequenceID   string
	CurrentStep  int
	Status       LeadStateStatus
	LastSentAt   *time.Time
	FailureCount int
	UpdatedAt    time.Time
}

// PendingLead is the shape persisted into Outbox.payload and consumed by the
// Worker off the broker. The JSON tags are the snake_case field names of the
// Worker's pending-lead schema, not the camelCase column names of
// LeadSequenceState and SequenceStep.
type PendingLead struct {
	LeadStateID    string `json:"lead_state_id" validate:"required"`
	LeadID         string `json:"lead_id" validate:"required"`
	SequenceID     string `json:"sequence_id" validate:"required"`
	CurrentStep    int    `json:"current_step" validate:"gte=0"`
	StepID         string `json:"step_id" validate:"required"`
	StepNumber     int    `json:"step_number" validate:"gte=1"`
	MinIntervalMin int    `json:"min_interval_min" validate:"gte=0"`
}
