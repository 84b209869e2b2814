package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/payments"
	"go.uber.org/zap"
)

// Shared fakes for executor, keeper and webhook tests.

type stubX402 struct {
	settleSuccess bool
	settles       int
	mu            sync.Mutex
}

func (f *stubX402) CreateUnsignedPaymentPayload(ctx context.Context, req payments.PaymentRequirements, amountAtomic *big.Int) (*apitypes.TypedData, map[string]any, error) {
	return &apitypes.TypedData{
		PrimaryType: "TransferWithAuthorization",
		Message: apitypes.TypedDataMessage{
			"to":    req.PayTo,
			"value": amountAtomic.String(),
		},
	}, map[string]any{}, nil
}

func (f *stubX402) ConstructPaymentHeader(ctx context.Context, signature string, userAddress common.Address, metadata map[string]any, message apitypes.TypedDataMessage) (string, error) {
	return "hdr", nil
}

func (f *stubX402) SettlePayment(ctx context.Context, header string, req payments.PaymentRequirements) (*payments.SettleResult, error) {
	f.mu.Lock()
	f.settles++
	f.mu.Unlock()
	if !f.settleSuccess {
		return &payments.SettleResult{Success: false, Network: req.Network, Err: "rejected"}, nil
	}
	return &payments.SettleResult{Success: true, TxHash: "0xsettled", Network: req.Network, TicketID: "tkt"}, nil
}

func (f *stubX402) settleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settles
}

type stubMNEE struct {
	allowance *big.Int
	transfers int
	mu        sync.Mutex
}

func (f *stubMNEE) CheckAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.allowance), nil
}

func (f *stubMNEE) RelayerAddress(ctx context.Context) (common.Address, error) {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa"), nil
}

func (f *stubMNEE) ExecuteRelayedTransfer(ctx context.Context, user, recipient common.Address, amountAtomic *big.Int) (string, error) {
	f.mu.Lock()
	f.transfers++
	f.mu.Unlock()
	return "0xrelayed", nil
}

func (f *stubMNEE) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers
}

func newTestExecutor(x *stubX402, m *stubMNEE) *ExecutorService {
	router := payments.NewRouter(x, m, 600, zap.NewNop())
	return NewExecutorService(router, zap.NewNop())
}

func TestValidateActionForExecution(t *testing.T) {
	executor := newTestExecutor(&stubX402{}, &stubMNEE{allowance: big.NewInt(0)})

	action := &models.PaymentAction{
		ID:         "a1",
		ActionType: models.ActionTypeTemplate,
		ChainID:    999,
	}

	violations := executor.ValidateActionForExecution(action)

	// disabled, template, recipient, amount, token, chain
	if len(violations) != 6 {
		t.Fatalf("expected 6 violations, got %d: %v", len(violations), violations)
	}
	joined := strings.Join(violations, "; ")
	for _, want := range []string{"disabled", "TEMPLATE", "recipient_address", "amount", "token", "chain 999"} {
		if !strings.Contains(joined, want) {
			t.Errorf("violations missing %q: %v", want, violations)
		}
	}
}

func validSendAction(chainID int64, token string) *models.PaymentAction {
	return &models.PaymentAction{
		ID:               "a1",
		WalletAddress:    "0xwallet",
		Name:             "send",
		ActionType:       models.ActionTypeSend,
		RecipientAddress: "0xrecipient",
		Amount:           "10",
		Token:            token,
		ChainID:          chainID,
		IsEnabled:        true,
	}
}

func TestExecuteActionValidationFailure(t *testing.T) {
	executor := newTestExecutor(&stubX402{}, &stubMNEE{allowance: big.NewInt(0)})

	action := validSendAction(25, "USDC")
	action.IsEnabled = false

	result := executor.ExecuteAction(context.Background(), action, "0xwallet", nil)
	if result.Status != models.ExecutionStatusFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}
	if result.ErrorMessage == nil || !strings.Contains(*result.ErrorMessage, "disabled") {
		t.Errorf("error message = %v", result.ErrorMessage)
	}
}

func TestExecuteActionAwaitingSignature(t *testing.T) {
	executor := newTestExecutor(&stubX402{settleSuccess: true}, &stubMNEE{allowance: big.NewInt(0)})

	result := executor.ExecuteAction(context.Background(), validSendAction(25, "USDC"), "0xwallet", nil)

	if result.Status != models.ExecutionStatusAwaitingSignature {
		t.Fatalf("status = %q, want awaiting_signature", result.Status)
	}
	prep, ok := result.Metadata["preparation"].(*payments.PreparationResult)
	if !ok {
		t.Fatal("metadata is missing the preparation payload")
	}
	if prep.TypedData == nil {
		t.Error("preparation has no typed data to sign")
	}
}

func TestExecuteActionWithSigner(t *testing.T) {
	x402 := &stubX402{settleSuccess: true}
	executor := newTestExecutor(x402, &stubMNEE{allowance: big.NewInt(0)})

	signer := func(ctx context.Context, typedData *apitypes.TypedData) (string, error) {
		return "0xsignature", nil
	}

	result := executor.ExecuteAction(context.Background(), validSendAction(25, "USDC"), "0xwallet", signer)

	if result.Status != models.ExecutionStatusSubmitted {
		t.Fatalf("status = %q, want submitted (err: %v)", result.Status, result.ErrorMessage)
	}
	if result.TicketID == nil || *result.TicketID != "tkt" {
		t.Errorf("ticket = %v, want tkt", result.TicketID)
	}
	if result.Metadata["tx_hash"] != "0xsettled" {
		t.Errorf("tx_hash = %v", result.Metadata["tx_hash"])
	}
	if x402.settleCount() != 1 {
		t.Errorf("settle count = %d, want 1", x402.settleCount())
	}
}

func TestExecuteActionFacilitatorRejection(t *testing.T) {
	executor := newTestExecutor(&stubX402{settleSuccess: false}, &stubMNEE{allowance: big.NewInt(0)})

	signer := func(ctx context.Context, typedData *apitypes.TypedData) (string, error) {
		return "0xsignature", nil
	}
	result := executor.ExecuteAction(context.Background(), validSendAction(25, "USDC"), "0xwallet", signer)

	if result.Status != models.ExecutionStatusFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}
	if result.ErrorMessage == nil || !strings.Contains(*result.ErrorMessage, "rejected by facilitator") {
		t.Errorf("error = %v", result.ErrorMessage)
	}
}

func TestExecuteActionMNEEReady(t *testing.T) {
	mnee := &stubMNEE{allowance: big.NewInt(1 << 40)}
	executor := newTestExecutor(&stubX402{}, mnee)

	result := executor.ExecuteAction(context.Background(), validSendAction(1, "MNEE"), "0xwallet", nil)

	if result.Status != models.ExecutionStatusSubmitted {
		t.Fatalf("status = %q, want submitted (err: %v)", result.Status, result.ErrorMessage)
	}
	if mnee.transferCount() != 1 {
		t.Errorf("transfer count = %d, want 1", mnee.transferCount())
	}
	if result.TicketID == nil || *result.TicketID != "0xrelayed" {
		t.Errorf("ticket = %v", result.TicketID)
	}
}

func TestExecuteActionMNEEInsufficientAllowance(t *testing.T) {
	mnee := &stubMNEE{allowance: big.NewInt(0)}
	executor := newTestExecutor(&stubX402{}, mnee)

	result := executor.ExecuteAction(context.Background(), validSendAction(1, "MNEE"), "0xwallet", nil)

	// Approval is the user's move; execution fails rather than waiting.
	if result.Status != models.ExecutionStatusFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}
	if result.ErrorMessage == nil || !strings.Contains(*result.ErrorMessage, "allowance is insufficient") {
		t.Errorf("error = %v", result.ErrorMessage)
	}
	if mnee.transferCount() != 0 {
		t.Errorf("no transfer should have been attempted, got %d", mnee.transferCount())
	}
}
