package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/payflow/backend/internal/middleware"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

type fakeHistoryStore struct {
	txs map[uuid.UUID]*models.PaymentTransaction
}

func (f *fakeHistoryStore) Append(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	f.txs[tx.ID] = tx
	return nil
}

func (f *fakeHistoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, txHash *string, confirmedAt *time.Time) error {
	tx, ok := f.txs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	tx.Status = status
	return nil
}

func (f *fakeHistoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeHistoryStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]*models.PaymentTransaction, error) {
	var out []*models.PaymentTransaction
	for _, tx := range f.txs {
		if tx.WalletAddress == wallet {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newHistoryTestApp(wallet string, store *fakeHistoryStore) *fiber.App {
	svc := services.NewHistoryService(store, zap.NewNop())
	h := NewHistoryHandler(svc, zap.NewNop())

	app := fiber.New()
	app.Put("/transactions/:id", func(c *fiber.Ctx) error {
		c.Locals(middleware.CtxWalletAddress, wallet)
		return h.UpdateTransaction(c)
	})
	return app
}

func TestUpdateTransactionStatusMapping(t *testing.T) {
	owner := "0xowner"
	confirmedID := uuid.New()
	pendingID := uuid.New()
	store := &fakeHistoryStore{txs: map[uuid.UUID]*models.PaymentTransaction{
		confirmedID: {ID: confirmedID, WalletAddress: owner, Status: models.TxStatusConfirmed},
		pendingID:   {ID: pendingID, WalletAddress: owner, Status: models.TxStatusPending},
	}}

	tests := []struct {
		name       string
		wallet     string
		id         string
		body       string
		wantStatus int
	}{
		{"backwards transition is a conflict", owner, confirmedID.String(),
			`{"status": "PENDING"}`, fiber.StatusConflict},
		{"another wallet's transaction is not found", "0xother", pendingID.String(),
			`{"status": "CANCELLED"}`, fiber.StatusNotFound},
		{"unknown transaction id", owner, uuid.NewString(),
			`{"status": "CONFIRMED"}`, fiber.StatusNotFound},
		{"malformed id", owner, "not-a-uuid",
			`{"status": "CONFIRMED"}`, fiber.StatusBadRequest},
		{"unknown status", owner, pendingID.String(),
			`{"status": "SHIPPED"}`, fiber.StatusBadRequest},
		{"valid transition", owner, pendingID.String(),
			`{"status": "PROCESSING"}`, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newHistoryTestApp(tt.wallet, store)
			req := httptest.NewRequest(fiber.MethodPut, "/transactions/"+tt.id, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
