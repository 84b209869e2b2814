package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookExecution is the audit entry written for every webhook call,
// keyed by the request id returned in the response envelope.
type WebhookExecution struct {
	ID            uuid.UUID      `json:"id"`
	RequestID     string         `json:"request_id"`
	AgentID       *string        `json:"agent_id,omitempty"`
	WalletAddress string         `json:"wallet_address"`
	EventType     string         `json:"event_type"`
	ActionID      *string        `json:"action_id,omitempty"`
	Status        string         `json:"status"`
	TicketID      *string        `json:"ticket_id,omitempty"`
	Error         *string        `json:"error,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
