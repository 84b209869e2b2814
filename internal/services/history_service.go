package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"go.uber.org/zap"
)

// HistoryService is the append/query audit trail of settled and attempted
// transfers. Records are never deleted.
type HistoryService struct {
	store repositories.HistoryStore
	log   *zap.Logger
}

func NewHistoryService(store repositories.HistoryStore, log *zap.Logger) *HistoryService {
	return &HistoryService{store: store, log: log}
}

func (s *HistoryService) Record(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.Status == "" {
		tx.Status = models.TxStatusPending
	}
	return s.store.Append(ctx, tx)
}

// UpdateStatus transitions a record, rejecting transitions outside the
// status machine. Records belong to one wallet; a caller asking about
// another wallet's transaction learns nothing beyond not-found.
func (s *HistoryService) UpdateStatus(ctx context.Context, wallet string, id uuid.UUID, status string, txHash *string) error {
	tx, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !strings.EqualFold(tx.WalletAddress, wallet) {
		return repositories.ErrNotFound
	}
	if !models.IsValidTxTransition(tx.Status, status) {
		return &ValidationError{Violations: []string{
			fmt.Sprintf("invalid transaction transition from %s to %s", tx.Status, status),
		}}
	}

	var confirmedAt *time.Time
	if status == models.TxStatusConfirmed {
		now := time.Now().UTC()
		confirmedAt = &now
	}
	if err := s.store.UpdateStatus(ctx, id, status, txHash, confirmedAt); err != nil {
		return err
	}

	s.log.Info("transaction status updated",
		zap.String("tx_id", id.String()),
		zap.String("from", tx.Status),
		zap.String("to", status),
	)
	return nil
}

func (s *HistoryService) List(ctx context.Context, wallet string, limit int) ([]*models.PaymentTransaction, error) {
	return s.store.ListByWallet(ctx, wallet, limit)
}
