package payments

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// PaymentRequirements is the protocol-agnostic description of a transfer
// handed to an adapter.
type PaymentRequirements struct {
	Scheme            string   `json:"scheme"`
	Network           string   `json:"network"`
	Asset             string   `json:"asset"` // token contract address
	Payer             string   `json:"payer"`
	PayTo             string   `json:"pay_to"`
	MaxAmountAtomic   *big.Int `json:"max_amount_atomic"`
	MaxTimeoutSeconds int      `json:"max_timeout_seconds"`
}

// SettleResult is what a facilitator reports after verify-and-settle.
type SettleResult struct {
	Success     bool      `json:"success"`
	TxHash      string    `json:"tx_hash"`
	Network     string    `json:"network"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	TicketID    string    `json:"ticket_id,omitempty"`
	Err         string    `json:"error,omitempty"`
}

// X402Adapter is the contract for the signed-authorization protocol. The
// adapter owns all cryptography and facilitator communication; the router
// only shapes requirements and relays payloads.
type X402Adapter interface {
	// CreateUnsignedPaymentPayload builds the EIP-712 typed data the user
	// must sign, plus protocol metadata echoed back on submit.
	CreateUnsignedPaymentPayload(ctx context.Context, req PaymentRequirements, amountAtomic *big.Int) (*apitypes.TypedData, map[string]any, error)

	// ConstructPaymentHeader packs a signature and the original message into
	// the opaque header the facilitator settles against.
	ConstructPaymentHeader(ctx context.Context, signature string, userAddress common.Address, metadata map[string]any, message apitypes.TypedDataMessage) (string, error)

	// SettlePayment asks the facilitator to verify and settle atomically.
	SettlePayment(ctx context.Context, header string, req PaymentRequirements) (*SettleResult, error)
}

// MNEEAdapter is the contract for the allowance/relayer protocol. The
// relayer custodies the token-spend authority granted by the on-chain
// allowance, so no signature is involved.
type MNEEAdapter interface {
	CheckAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	RelayerAddress(ctx context.Context) (common.Address, error)
	ExecuteRelayedTransfer(ctx context.Context, user, recipient common.Address, amountAtomic *big.Int) (string, error)
}
