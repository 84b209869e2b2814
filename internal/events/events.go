package events

import "context"

// ChannelPayments carries every wallet-facing event. The websocket hub
// subscribes to it and fans out by the wallet_address payload field.
const ChannelPayments = "events:payments"

// Event types
const (
	EventActionCreated   = "action_created"
	EventActionUpdated   = "action_updated"
	EventPaymentExecuted = "payment_executed"
	EventFlowUpdated     = "flow_updated"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
