package payments

import (
	"context"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCreateUnsignedPaymentPayload(t *testing.T) {
	client := NewFacilitatorClient("http://localhost:0", zap.NewNop())

	req := PaymentRequirements{
		Scheme:            "exact",
		Network:           "cronos",
		Asset:             "0x2D03bECE6747ADC00E1a131BBA1469C15fD11e03",
		Payer:             "0x1111111111111111111111111111111111111111",
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxTimeoutSeconds: 600,
	}
	amount := big.NewInt(10_000_000)

	before := time.Now().Unix()
	td, meta, err := client.CreateUnsignedPaymentPayload(context.Background(), req, amount)
	if err != nil {
		t.Fatal(err)
	}

	from, ok := td.Message["from"].(string)
	if !ok || from == "" {
		t.Fatalf("message has no from field: %v", td.Message)
	}
	if from != "0x1111111111111111111111111111111111111111" {
		t.Errorf("from = %q, want the payer address", from)
	}

	validAfter, _ := td.Message["validAfter"].(string)
	if validAfter == "0" || validAfter == "" {
		t.Errorf("validAfter = %q, want a recent timestamp", validAfter)
	}
	va := new(big.Int)
	va.SetString(validAfter, 10)
	if va.Int64() > before || va.Int64() < before-300 {
		t.Errorf("validAfter %d is not within the skew window of now %d", va.Int64(), before)
	}

	vb := new(big.Int)
	vb.SetString(td.Message["validBefore"].(string), 10)
	if vb.Int64() < before+int64(req.MaxTimeoutSeconds) {
		t.Errorf("validBefore %d does not cover the %ds window", vb.Int64(), req.MaxTimeoutSeconds)
	}

	// The payload must be signable exactly as prepared; the signature
	// covers every message field, including from.
	if _, err := td.HashStruct(td.PrimaryType, td.Message); err != nil {
		t.Fatalf("prepared message is not hashable: %v", err)
	}
	if _, err := td.HashStruct("EIP712Domain", td.Domain.Map()); err != nil {
		t.Fatalf("prepared domain is not hashable: %v", err)
	}

	if meta["nonce"] == "" || meta["valid_after"] == nil || meta["valid_before"] == nil {
		t.Errorf("metadata incomplete: %v", meta)
	}
}

func TestCreateUnsignedPaymentPayloadRequiresPayer(t *testing.T) {
	client := NewFacilitatorClient("http://localhost:0", zap.NewNop())

	_, _, err := client.CreateUnsignedPaymentPayload(context.Background(), PaymentRequirements{
		Network:           "cronos",
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxTimeoutSeconds: 600,
	}, big.NewInt(1))
	if err == nil {
		t.Fatal("expected an error for a missing payer")
	}
}

func TestCreateUnsignedPaymentPayloadNonceUnique(t *testing.T) {
	client := NewFacilitatorClient("http://localhost:0", zap.NewNop())
	req := PaymentRequirements{
		Network:           "cronos",
		Payer:             "0x1111111111111111111111111111111111111111",
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxTimeoutSeconds: 600,
	}

	a, _, err := client.CreateUnsignedPaymentPayload(context.Background(), req, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := client.CreateUnsignedPaymentPayload(context.Background(), req, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if a.Message["nonce"] == b.Message["nonce"] {
		t.Error("two preparations produced the same authorization nonce")
	}
}
