package models

import (
	"time"
)

// Action types
const (
	ActionTypeSend      = "SEND"
	ActionTypeRecurring = "RECURRING"
	ActionTypeShortcut  = "SHORTCUT"
	ActionTypeTemplate  = "TEMPLATE"
)

func IsValidActionType(t string) bool {
	switch t {
	case ActionTypeSend, ActionTypeRecurring, ActionTypeShortcut, ActionTypeTemplate:
		return true
	default:
		return false
	}
}

// Schedule frequencies
const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

func IsValidFrequency(f string) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Schedule describes when a RECURRING action becomes due.
// DayOfWeek follows time.Weekday numbering (Sunday = 0).
type Schedule struct {
	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`
}

// PaymentAction is a stored, reusable payment intent owned by one wallet.
type PaymentAction struct {
	ID               string     `json:"id"`
	WalletAddress    string     `json:"wallet_address"`
	Name             string     `json:"name"`
	ActionType       string     `json:"action_type"`
	RecipientAddress string     `json:"recipient_address"`
	Amount           string     `json:"amount"` // decimal as string
	Token            string     `json:"token"`
	ChainID          int64      `json:"chain_id"`
	Schedule         *Schedule  `json:"schedule,omitempty"` // RECURRING only
	Triggers         []string   `json:"triggers,omitempty"`
	IsPinned         bool       `json:"is_pinned"`
	IsEnabled        bool       `json:"is_enabled"`
	UsageCount       int        `json:"usage_count"`
	LastUsed         *time.Time `json:"last_used,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Clone returns a deep copy so in-memory overrides never leak into the
// stored record.
func (a *PaymentAction) Clone() *PaymentAction {
	c := *a
	if a.Schedule != nil {
		s := *a.Schedule
		if a.Schedule.DayOfWeek != nil {
			d := *a.Schedule.DayOfWeek
			s.DayOfWeek = &d
		}
		if a.Schedule.DayOfMonth != nil {
			d := *a.Schedule.DayOfMonth
			s.DayOfMonth = &d
		}
		c.Schedule = &s
	}
	if a.Triggers != nil {
		c.Triggers = append([]string(nil), a.Triggers...)
	}
	if a.LastUsed != nil {
		t := *a.LastUsed
		c.LastUsed = &t
	}
	return &c
}
