package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/payflow/backend/internal/auth"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func strPtr(s string) *string   { return &s }
func pctPtr(f float64) *float64 { return &f }

func TestComputeBatchLegs(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		recipients []BatchRecipient
		want       []string // leg amounts in order
		wantErr    bool
	}{
		{
			"percentages split the total",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Percent: pctPtr(60)},
				{Address: "0x02", Percent: pctPtr(40)},
			},
			[]string{"6", "4"},
			false,
		},
		{
			"fixed amounts subtracted before percentages",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Amount: strPtr("4")},
				{Address: "0x02", Percent: pctPtr(50)},
			},
			[]string{"4", "3"},
			false,
		},
		{
			"all fixed",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Amount: strPtr("2.5")},
				{Address: "0x02", Amount: strPtr("7.5")},
			},
			[]string{"2.5", "7.5"},
			false,
		},
		{
			"percentages summing past 100 are rejected",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Percent: pctPtr(60)},
				{Address: "0x02", Percent: pctPtr(50)},
			},
			nil,
			true,
		},
		{
			"fixed amounts exceeding total are rejected",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Amount: strPtr("11")},
			},
			nil,
			true,
		},
		{
			"recipient with both amount and percent",
			"10",
			[]BatchRecipient{
				{Address: "0x01", Amount: strPtr("1"), Percent: pctPtr(10)},
			},
			nil,
			true,
		},
		{
			"recipient with neither",
			"10",
			[]BatchRecipient{{Address: "0x01"}},
			nil,
			true,
		},
		{
			"missing address",
			"10",
			[]BatchRecipient{{Percent: pctPtr(100)}},
			nil,
			true,
		},
		{
			"empty recipients",
			"10",
			nil,
			nil,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := decimal.NewFromString(tt.total)
			legs, err := ComputeBatchLegs(total, tt.recipients)
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(legs) != len(tt.want) {
				t.Fatalf("legs = %d, want %d", len(legs), len(tt.want))
			}
			for i, want := range tt.want {
				if !legs[i].Amount.Equal(decimal.RequireFromString(want)) {
					t.Errorf("leg %d = %s, want %s", i, legs[i].Amount, want)
				}
			}
		})
	}
}

func newTestWebhookService(mnee *stubMNEE) (*WebhookService, *ActionService) {
	cfg := &config.Config{
		WebhookSecret:      "test-secret",
		MaxBatchRecipients: 20,
	}
	actions := NewActionService(repositories.NewMemoryActionRepo(), nil, zap.NewNop())
	executor := newTestExecutor(&stubX402{settleSuccess: true}, mnee)
	svc := NewWebhookService(actions, executor, nil, nil, nil, cfg, zap.NewNop())
	return svc, actions
}

func TestWebhookVerifySignature(t *testing.T) {
	svc, _ := newTestWebhookService(&stubMNEE{allowance: big.NewInt(0)})

	payload := []byte(`{"b": 2, "a": 1}`)
	sig, err := auth.SignPayload("test-secret", payload)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.VerifySignature(payload, sig); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	// Key order must not matter
	reordered := []byte(`{"a": 1, "b": 2}`)
	if err := svc.VerifySignature(reordered, sig); err != nil {
		t.Errorf("canonically equal payload rejected: %v", err)
	}

	var sErr *SignatureError
	if err := svc.VerifySignature(payload, "deadbeef"); !errors.As(err, &sErr) {
		t.Errorf("expected SignatureError, got %v", err)
	}
	if err := svc.VerifySignature([]byte(`{"a": 999}`), sig); !errors.As(err, &sErr) {
		t.Errorf("tampered payload accepted: %v", err)
	}
}

func TestWebhookVerifySignatureDevMode(t *testing.T) {
	svc, _ := newTestWebhookService(&stubMNEE{allowance: big.NewInt(0)})
	svc.cfg = &config.Config{WebhookSecret: ""}

	if err := svc.VerifySignature([]byte(`{}`), ""); err != nil {
		t.Errorf("empty secret should skip verification, got %v", err)
	}
}

func TestWebhookExecuteActionOverridesAreEphemeral(t *testing.T) {
	mnee := &stubMNEE{allowance: big.NewInt(1 << 40)}
	svc, actions := newTestWebhookService(mnee)
	ctx := context.Background()

	created, err := actions.CreateAction(ctx, CreateActionRequest{
		WalletAddress: "0xwallet", Name: "tip", ActionType: models.ActionTypeSend,
		RecipientAddress: "0xoriginal", Amount: "1", Token: "MNEE", ChainID: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.ExecuteAction(ctx, "req-1", ExecuteActionRequest{
		WalletAddress: "0xwallet",
		ActionID:      created.ID,
		Overrides: ActionOverrides{
			Amount:    strPtr("2.5"),
			Recipient: strPtr("0xoverride"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Succeeded() {
		t.Fatalf("execution failed: %v", result.ErrorMessage)
	}

	// Stored record is untouched by overrides; usage is recorded.
	stored, err := actions.GetAction(ctx, "0xwallet", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Amount != "1" || stored.RecipientAddress != "0xoriginal" {
		t.Errorf("overrides leaked into store: %+v", stored)
	}
	if stored.UsageCount != 1 {
		t.Errorf("usage_count = %d, want 1", stored.UsageCount)
	}
}

func TestWebhookExecuteActionNotFound(t *testing.T) {
	svc, _ := newTestWebhookService(&stubMNEE{allowance: big.NewInt(0)})

	_, err := svc.ExecuteAction(context.Background(), "req-1", ExecuteActionRequest{
		WalletAddress: "0xwallet",
		ActionID:      "missing",
	})
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWebhookExecuteBatch(t *testing.T) {
	mnee := &stubMNEE{allowance: big.NewInt(1 << 40)}
	svc, _ := newTestWebhookService(mnee)

	batch, err := svc.ExecuteBatch(context.Background(), "req-1", ExecuteBatchRequest{
		WalletAddress: "0xwallet",
		TotalAmount:   "10",
		Token:         "MNEE",
		ChainID:       1,
		Recipients: []BatchRecipient{
			{Address: "0x01", Percent: pctPtr(60)},
			{Address: "0x02", Percent: pctPtr(40)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Submitted != 2 || batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.Legs[0].Amount != "6" || batch.Legs[1].Amount != "4" {
		t.Errorf("leg amounts = %q, %q", batch.Legs[0].Amount, batch.Legs[1].Amount)
	}
	if mnee.transferCount() != 2 {
		t.Errorf("transfers = %d, want 2", mnee.transferCount())
	}
}

func TestWebhookExecuteBatchRejectedBeforeAnyLeg(t *testing.T) {
	mnee := &stubMNEE{allowance: big.NewInt(1 << 40)}
	svc, _ := newTestWebhookService(mnee)

	_, err := svc.ExecuteBatch(context.Background(), "req-1", ExecuteBatchRequest{
		WalletAddress: "0xwallet",
		TotalAmount:   "10",
		Token:         "MNEE",
		ChainID:       1,
		Recipients: []BatchRecipient{
			{Address: "0x01", Percent: pctPtr(60)},
			{Address: "0x02", Percent: pctPtr(50)},
		},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if mnee.transferCount() != 0 {
		t.Errorf("transfers = %d, want 0 (no leg may execute)", mnee.transferCount())
	}
}

func TestWebhookExecuteBatchFailingLegIsSkipped(t *testing.T) {
	// Zero allowance fails every mnee leg, but the batch still walks all
	// legs and reports per-leg status.
	mnee := &stubMNEE{allowance: big.NewInt(0)}
	svc, _ := newTestWebhookService(mnee)

	batch, err := svc.ExecuteBatch(context.Background(), "req-1", ExecuteBatchRequest{
		WalletAddress: "0xwallet",
		TotalAmount:   "10",
		Token:         "MNEE",
		ChainID:       1,
		Recipients: []BatchRecipient{
			{Address: "0x01", Percent: pctPtr(50)},
			{Address: "0x02", Percent: pctPtr(50)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Submitted != 0 || batch.Failed != 2 {
		t.Fatalf("batch = %+v", batch)
	}
	for i, leg := range batch.Legs {
		if leg.Status != models.ExecutionStatusFailed || leg.Error == nil {
			t.Errorf("leg %d: %+v", i, leg)
		}
	}
}

func TestWebhookExecuteBatchTooManyRecipients(t *testing.T) {
	svc, _ := newTestWebhookService(&stubMNEE{allowance: big.NewInt(0)})
	svc.cfg.MaxBatchRecipients = 2

	recipients := []BatchRecipient{
		{Address: "0x01", Percent: pctPtr(10)},
		{Address: "0x02", Percent: pctPtr(10)},
		{Address: "0x03", Percent: pctPtr(10)},
	}
	_, err := svc.ExecuteBatch(context.Background(), "req-1", ExecuteBatchRequest{
		WalletAddress: "0xwallet", TotalAmount: "10", Token: "MNEE", ChainID: 1,
		Recipients: recipients,
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
