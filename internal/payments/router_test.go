package payments

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

type fakeX402 struct {
	settleSuccess bool
	settleErr     error
	lastHeader    string
	lastReq       PaymentRequirements
}

func (f *fakeX402) CreateUnsignedPaymentPayload(ctx context.Context, req PaymentRequirements, amountAtomic *big.Int) (*apitypes.TypedData, map[string]any, error) {
	f.lastReq = req
	return &apitypes.TypedData{
		PrimaryType: "TransferWithAuthorization",
		Message: apitypes.TypedDataMessage{
			"from":  req.Payer,
			"to":    req.PayTo,
			"value": amountAtomic.String(),
		},
	}, map[string]any{"nonce": "0x01"}, nil
}

func (f *fakeX402) ConstructPaymentHeader(ctx context.Context, signature string, userAddress common.Address, metadata map[string]any, message apitypes.TypedDataMessage) (string, error) {
	if signature == "" {
		return "", errors.New("signature is required")
	}
	f.lastHeader = "hdr:" + signature
	return f.lastHeader, nil
}

func (f *fakeX402) SettlePayment(ctx context.Context, header string, req PaymentRequirements) (*SettleResult, error) {
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	if !f.settleSuccess {
		return &SettleResult{Success: false, Network: req.Network, Err: "verification failed"}, nil
	}
	return &SettleResult{Success: true, TxHash: "0xfeed", Network: req.Network, TicketID: "tkt-1"}, nil
}

type fakeMNEE struct {
	allowance   *big.Int
	transferErr error
}

func (f *fakeMNEE) CheckAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeMNEE) RelayerAddress(ctx context.Context) (common.Address, error) {
	return common.HexToAddress("0x00000000000000000000000000000000000000aa"), nil
}

func (f *fakeMNEE) ExecuteRelayedTransfer(ctx context.Context, user, recipient common.Address, amountAtomic *big.Int) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}
	return "0xrelayed", nil
}

func newTestRouter(x *fakeX402, m *fakeMNEE) *Router {
	return NewRouter(x, m, 600, zap.NewNop())
}

func TestPrepareRoutesByProtocol(t *testing.T) {
	x402 := &fakeX402{}
	router := newTestRouter(x402, &fakeMNEE{allowance: big.NewInt(0)})
	ctx := context.Background()

	prep, err := router.Prepare(ctx, NetworkCronos, "0x01", "0x02", "10", "USDC")
	if err != nil {
		t.Fatalf("x402 prepare: %v", err)
	}
	if prep.Protocol != ProtocolX402 {
		t.Errorf("protocol = %q, want x402", prep.Protocol)
	}
	if prep.ActionType != PrepareSignTypedData {
		t.Errorf("action_type = %q, want %q", prep.ActionType, PrepareSignTypedData)
	}
	if prep.TypedData == nil {
		t.Error("x402 preparation is missing typed data")
	}
	if prep.RequiredAtomic != "10000000" {
		t.Errorf("required_atomic = %q, want 10000000", prep.RequiredAtomic)
	}
	if x402.lastReq.Payer != "0x01" {
		t.Errorf("payer = %q, want the user address threaded to the adapter", x402.lastReq.Payer)
	}
	if from, _ := prep.TypedData.Message["from"].(string); from != "0x01" {
		t.Errorf("typed data from = %q, want the payer", from)
	}

	prep, err = router.Prepare(ctx, NetworkEthereum, "0x01", "0x02", "10", "MNEE")
	if err != nil {
		t.Fatalf("mnee prepare: %v", err)
	}
	if prep.Protocol != ProtocolMNEE {
		t.Errorf("protocol = %q, want mnee", prep.Protocol)
	}
	if prep.ActionType != PrepareApproveAllowance {
		t.Errorf("action_type = %q, want %q with zero allowance", prep.ActionType, PrepareApproveAllowance)
	}
}

func TestPrepareUnknownRoute(t *testing.T) {
	router := newTestRouter(&fakeX402{}, &fakeMNEE{allowance: big.NewInt(0)})

	_, err := router.Prepare(context.Background(), NetworkEthereum, "0x01", "0x02", "10", "USDC")
	if err == nil {
		t.Fatal("expected routing error")
	}
	var rErr *RoutingError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RoutingError, got %T: %v", err, err)
	}
}

func TestPrepareMetadataAlwaysPopulated(t *testing.T) {
	router := newTestRouter(&fakeX402{}, &fakeMNEE{allowance: big.NewInt(1 << 40)})
	ctx := context.Background()

	for _, tc := range []struct{ network, token string }{
		{NetworkCronos, "USDC"},
		{NetworkEthereum, "MNEE"},
	} {
		prep, err := router.Prepare(ctx, tc.network, "0x01", "0x02", "1", tc.token)
		if err != nil {
			t.Fatalf("prepare %s/%s: %v", tc.network, tc.token, err)
		}
		for _, key := range []string{"scheme", "network", "asset", "amount_atomic"} {
			if _, ok := prep.Metadata[key]; !ok {
				t.Errorf("%s/%s metadata is missing %q", tc.network, tc.token, key)
			}
		}
	}
}

// Allowance at or above the required amount must yield ready_to_execute,
// anything below must demand approval, regardless of magnitudes.
func TestPrepareMNEEAllowanceThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		required := rng.Int63n(1_000_000_000) + 1
		allowance := rng.Int63n(2_000_000_000)

		router := newTestRouter(&fakeX402{}, &fakeMNEE{allowance: big.NewInt(allowance)})
		amount := FromAtomic(big.NewInt(required), 5)

		prep, err := router.Prepare(ctx, NetworkEthereum, "0x01", "0x02", amount, "MNEE")
		if err != nil {
			t.Fatalf("prepare: %v", err)
		}

		want := PrepareApproveAllowance
		if allowance >= required {
			want = PrepareReadyToExecute
		}
		if prep.ActionType != want {
			t.Fatalf("allowance=%d required=%d: action_type = %q, want %q", allowance, required, prep.ActionType, want)
		}
	}
}

func TestSubmitX402(t *testing.T) {
	x402 := &fakeX402{settleSuccess: true}
	router := newTestRouter(x402, &fakeMNEE{allowance: big.NewInt(0)})

	res, err := router.Submit(context.Background(), Submission{
		Protocol:         ProtocolX402,
		Network:          NetworkCronos,
		UserAddress:      "0x01",
		RecipientAddress: "0x02",
		AmountAtomic:     "1000000",
		Signature:        "0xsig",
		Message:          apitypes.TypedDataMessage{"value": "1000000"},
		Metadata:         map[string]any{"scheme": "exact", "network": NetworkCronos, "asset": "0xtoken"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Success || res.TxHash != "0xfeed" || res.TicketID != "tkt-1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSubmitX402FacilitatorRejection(t *testing.T) {
	router := newTestRouter(&fakeX402{settleSuccess: false}, &fakeMNEE{allowance: big.NewInt(0)})

	res, err := router.Submit(context.Background(), Submission{
		Protocol:     ProtocolX402,
		Network:      NetworkCronos,
		AmountAtomic: "1",
		Signature:    "0xsig",
		Metadata:     map[string]any{},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Success {
		t.Error("expected rejection to surface as Success=false")
	}
	if res.Err == "" {
		t.Error("expected facilitator error message")
	}
}

func TestSubmitX402SettleError(t *testing.T) {
	router := newTestRouter(&fakeX402{settleErr: errors.New("facilitator unavailable")}, &fakeMNEE{allowance: big.NewInt(0)})

	_, err := router.Submit(context.Background(), Submission{
		Protocol:     ProtocolX402,
		Network:      NetworkCronos,
		AmountAtomic: "1",
		Signature:    "0xsig",
		Metadata:     map[string]any{},
	})
	var sErr *SettlementError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SettlementError, got %T: %v", err, err)
	}
}

func TestSubmitMNEE(t *testing.T) {
	router := newTestRouter(&fakeX402{}, &fakeMNEE{allowance: big.NewInt(1000)})

	res, err := router.Submit(context.Background(), Submission{
		Protocol:         ProtocolMNEE,
		Network:          NetworkEthereum,
		UserAddress:      "0x01",
		RecipientAddress: "0x02",
		AmountAtomic:     "500",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Success || res.TxHash != "0xrelayed" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.TicketID != res.TxHash {
		t.Errorf("mnee ticket should be the tx hash, got %q", res.TicketID)
	}
}

func TestSubmitMNEERelayerError(t *testing.T) {
	router := newTestRouter(&fakeX402{}, &fakeMNEE{allowance: big.NewInt(1000), transferErr: errors.New("allowance revoked")})

	_, err := router.Submit(context.Background(), Submission{
		Protocol:     ProtocolMNEE,
		Network:      NetworkEthereum,
		AmountAtomic: "500",
	})
	var sErr *SettlementError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SettlementError, got %T: %v", err, err)
	}
}
