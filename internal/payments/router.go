package payments

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// Preparation action types
const (
	PrepareSignTypedData    = "sign_typed_data"
	PrepareApproveAllowance = "approve_allowance"
	PrepareReadyToExecute   = "ready_to_execute"
)

// PreparationResult is the output of the prepare phase. For x402 it carries
// the typed data to sign; for mnee it carries the relayer and allowance
// state. Metadata always includes scheme, network, asset and amount_atomic.
type PreparationResult struct {
	ActionType       string              `json:"action_type"`
	Protocol         Protocol            `json:"protocol"`
	Network          string              `json:"network"`
	TypedData        *apitypes.TypedData `json:"typed_data,omitempty"`
	RelayerAddress   string              `json:"relayer_address,omitempty"`
	CurrentAllowance string              `json:"current_allowance,omitempty"`
	RequiredAtomic   string              `json:"required_atomic"`
	Metadata         map[string]any      `json:"metadata"`
}

// Submission carries everything needed to drive the submit phase of a
// previously prepared payment.
type Submission struct {
	Protocol         Protocol                 `json:"protocol"`
	Network          string                   `json:"network"`
	UserAddress      string                   `json:"user_address"`
	RecipientAddress string                   `json:"recipient_address"`
	AmountAtomic     string                   `json:"amount_atomic"`
	Signature        string                   `json:"signature,omitempty"` // x402 only
	Message          apitypes.TypedDataMessage `json:"message,omitempty"`  // x402 only
	Metadata         map[string]any           `json:"metadata,omitempty"`
}

// SubmitResult is the outcome of one submission. The router never retries
// internally.
type SubmitResult struct {
	Success  bool   `json:"success"`
	TxHash   string `json:"tx_hash,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
	Network  string `json:"network"`
	Err      string `json:"error,omitempty"`
}

// Router routes (network, token) pairs to protocol adapters and drives the
// two-phase prepare/submit cycle. It is stateless aside from the adapters.
type Router struct {
	x402           X402Adapter
	mnee           MNEEAdapter
	timeoutSeconds int
	log            *zap.Logger
}

func NewRouter(x402 X402Adapter, mnee MNEEAdapter, timeoutSeconds int, log *zap.Logger) *Router {
	return &Router{x402: x402, mnee: mnee, timeoutSeconds: timeoutSeconds, log: log}
}

// GetRoute resolves the static routing table.
func (r *Router) GetRoute(network, token string) (Route, error) {
	return GetRoute(network, token)
}

// Prepare resolves the route for (network, token) and produces the
// protocol-specific preparation payload.
func (r *Router) Prepare(ctx context.Context, network, userAddress, recipientAddress, amount, token string) (*PreparationResult, error) {
	route, err := GetRoute(network, token)
	if err != nil {
		return nil, err
	}

	atomic, err := ToAtomic(amount, route.Asset.Decimals)
	if err != nil {
		return nil, err
	}

	switch route.Protocol {
	case ProtocolX402:
		return r.prepareX402(ctx, route, userAddress, recipientAddress, atomic)
	case ProtocolMNEE:
		return r.prepareMNEE(ctx, route, userAddress, atomic)
	default:
		return nil, fmt.Errorf("unknown protocol %q for route", route.Protocol)
	}
}

func (r *Router) prepareX402(ctx context.Context, route Route, payer, recipient string, atomic *big.Int) (*PreparationResult, error) {
	req := PaymentRequirements{
		Scheme:            "exact",
		Network:           route.Network,
		Asset:             route.Asset.Contract,
		Payer:             payer,
		PayTo:             recipient,
		MaxAmountAtomic:   atomic,
		MaxTimeoutSeconds: r.timeoutSeconds,
	}

	typedData, meta, err := r.x402.CreateUnsignedPaymentPayload(ctx, req, atomic)
	if err != nil {
		return nil, &PreparationError{Protocol: string(ProtocolX402), Err: err}
	}

	metadata := map[string]any{}
	for k, v := range meta {
		metadata[k] = v
	}
	metadata["scheme"] = req.Scheme
	metadata["network"] = route.Network
	metadata["asset"] = route.Asset.Contract
	metadata["amount_atomic"] = atomic.String()

	return &PreparationResult{
		ActionType:     PrepareSignTypedData,
		Protocol:       ProtocolX402,
		Network:        route.Network,
		TypedData:      typedData,
		RequiredAtomic: atomic.String(),
		Metadata:       metadata,
	}, nil
}

func (r *Router) prepareMNEE(ctx context.Context, route Route, userAddress string, atomic *big.Int) (*PreparationResult, error) {
	relayer, err := r.mnee.RelayerAddress(ctx)
	if err != nil {
		return nil, &PreparationError{Protocol: string(ProtocolMNEE), Err: err}
	}

	allowance, err := r.mnee.CheckAllowance(ctx, common.HexToAddress(userAddress), relayer)
	if err != nil {
		return nil, &PreparationError{Protocol: string(ProtocolMNEE), Err: err}
	}

	actionType := PrepareApproveAllowance
	if allowance.Cmp(atomic) >= 0 {
		actionType = PrepareReadyToExecute
	}

	return &PreparationResult{
		ActionType:       actionType,
		Protocol:         ProtocolMNEE,
		Network:          route.Network,
		RelayerAddress:   relayer.Hex(),
		CurrentAllowance: allowance.String(),
		RequiredAtomic:   atomic.String(),
		Metadata: map[string]any{
			"scheme":        "allowance",
			"network":       route.Network,
			"asset":         route.Asset.Contract,
			"amount_atomic": atomic.String(),
		},
	}, nil
}

// Submit drives the second phase. For x402 the caller supplies the signature
// over the prepared message; for mnee the relayer executes directly.
func (r *Router) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	switch sub.Protocol {
	case ProtocolX402:
		return r.submitX402(ctx, sub)
	case ProtocolMNEE:
		return r.submitMNEE(ctx, sub)
	default:
		return nil, fmt.Errorf("unknown protocol %q", sub.Protocol)
	}
}

func (r *Router) submitX402(ctx context.Context, sub Submission) (*SubmitResult, error) {
	header, err := r.x402.ConstructPaymentHeader(ctx, sub.Signature, common.HexToAddress(sub.UserAddress), sub.Metadata, sub.Message)
	if err != nil {
		return nil, &SettlementError{Protocol: string(ProtocolX402), Err: err}
	}

	amount := new(big.Int)
	if sub.AmountAtomic != "" {
		if _, ok := amount.SetString(sub.AmountAtomic, 10); !ok {
			return nil, &SettlementError{Protocol: string(ProtocolX402), Err: fmt.Errorf("invalid atomic amount %q", sub.AmountAtomic)}
		}
	}
	asset, _ := sub.Metadata["asset"].(string)
	req := PaymentRequirements{
		Scheme:            "exact",
		Network:           sub.Network,
		Asset:             asset,
		PayTo:             sub.RecipientAddress,
		MaxAmountAtomic:   amount,
		MaxTimeoutSeconds: r.timeoutSeconds,
	}

	res, err := r.x402.SettlePayment(ctx, header, req)
	if err != nil {
		return nil, &SettlementError{Protocol: string(ProtocolX402), Err: err}
	}

	r.log.Info("x402 payment settled",
		zap.String("network", res.Network),
		zap.String("tx_hash", res.TxHash),
		zap.Bool("success", res.Success),
	)

	return &SubmitResult{
		Success:  res.Success,
		TxHash:   res.TxHash,
		TicketID: res.TicketID,
		Network:  res.Network,
		Err:      res.Err,
	}, nil
}

func (r *Router) submitMNEE(ctx context.Context, sub Submission) (*SubmitResult, error) {
	amount := new(big.Int)
	if _, ok := amount.SetString(sub.AmountAtomic, 10); !ok {
		return nil, &SettlementError{Protocol: string(ProtocolMNEE), Err: fmt.Errorf("invalid atomic amount %q", sub.AmountAtomic)}
	}

	txHash, err := r.mnee.ExecuteRelayedTransfer(ctx,
		common.HexToAddress(sub.UserAddress),
		common.HexToAddress(sub.RecipientAddress),
		amount,
	)
	if err != nil {
		return nil, &SettlementError{Protocol: string(ProtocolMNEE), Err: err}
	}

	r.log.Info("mnee relayed transfer executed",
		zap.String("network", sub.Network),
		zap.String("tx_hash", txHash),
	)

	return &SubmitResult{Success: true, TxHash: txHash, TicketID: txHash, Network: sub.Network}, nil
}
