package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses
const (
	TxStatusPending    = "PENDING"
	TxStatusProcessing = "PROCESSING"
	TxStatusConfirmed  = "CONFIRMED"
	TxStatusFailed     = "FAILED"
	TxStatusCancelled  = "CANCELLED"
)

// Valid status transitions: from -> []to
var ValidTxTransitions = map[string][]string{
	TxStatusPending:    {TxStatusProcessing, TxStatusConfirmed, TxStatusFailed, TxStatusCancelled},
	TxStatusProcessing: {TxStatusConfirmed, TxStatusFailed, TxStatusCancelled},
	TxStatusConfirmed:  {},
	TxStatusFailed:     {},
	TxStatusCancelled:  {},
}

func IsValidTxTransition(from, to string) bool {
	allowed, ok := ValidTxTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentTransaction is an append-style audit record of a settled or
// attempted transfer. Records are created on submission and mutated only
// through status updates, never deleted.
type PaymentTransaction struct {
	ID              uuid.UUID      `json:"id"`
	WalletAddress   string         `json:"wallet_address"`
	ActionID        *string        `json:"action_id,omitempty"`
	Status          string         `json:"status"`
	TicketID        *string        `json:"ticket_id,omitempty"`
	TransactionHash *string        `json:"transaction_hash,omitempty"`
	FromAddress     string         `json:"from_address"`
	ToAddress       string         `json:"to_address"`
	Amount          string         `json:"amount"`
	Token           string         `json:"token"`
	Fee             *string        `json:"fee,omitempty"`
	ChainID         int64          `json:"chain_id"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ConfirmedAt     *time.Time     `json:"confirmed_at,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
