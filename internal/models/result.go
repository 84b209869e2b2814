package models

import "time"

// Execution statuses
const (
	ExecutionStatusQueued            = "queued"
	ExecutionStatusAwaitingSignature = "awaiting_signature"
	ExecutionStatusSubmitted         = "submitted"
	ExecutionStatusCompleted         = "completed"
	ExecutionStatusFailed            = "failed"
)

// ExecutionResult is the outcome of one execution attempt. It is created
// fresh per attempt and never mutated; a retry produces a new result.
type ExecutionResult struct {
	Status        string         `json:"status"`
	ActionID      string         `json:"action_id"`
	WalletAddress string         `json:"wallet_address"`
	TicketID      *string        `json:"ticket_id,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

func (r *ExecutionResult) Succeeded() bool {
	return r.Status == ExecutionStatusSubmitted || r.Status == ExecutionStatusCompleted
}
