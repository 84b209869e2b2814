package payments

import "fmt"

// RoutingError means no protocol serves the (network, token) pair. There is
// no fallback protocol.
type RoutingError struct {
	Network string
	Token   string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no payment route for token %q on network %q", e.Token, e.Network)
}

// PreparationError wraps an adapter failure during the prepare phase.
type PreparationError struct {
	Protocol string
	Err      error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("payment preparation failed (%s): %v", e.Protocol, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

// SettlementError wraps an adapter or facilitator rejection during submit.
type SettlementError struct {
	Protocol string
	Err      error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("payment settlement failed (%s): %v", e.Protocol, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
