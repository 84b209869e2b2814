package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/backend/internal/models"
)

// ErrNotFound is returned for lookups, updates and deletes against ids that
// do not exist in the store. Callers treat it as a signal, not a crash.
var ErrNotFound = errors.New("not found")

// ActionFilter narrows List results. Nil fields match everything.
type ActionFilter struct {
	ActionType *string
	Enabled    *bool
}

// ActionStore is the pluggable persistence boundary for payment actions,
// namespaced by wallet address. Backed by postgres in production and by an
// in-memory map in dev and tests.
type ActionStore interface {
	Create(ctx context.Context, a *models.PaymentAction) error
	Get(ctx context.Context, wallet, id string) (*models.PaymentAction, error)
	List(ctx context.Context, wallet string, f ActionFilter) ([]*models.PaymentAction, error)
	Update(ctx context.Context, a *models.PaymentAction) error
	Delete(ctx context.Context, wallet, id string) error
	// MarkUsed increments usage_count and sets last_used atomically at the
	// store level.
	MarkUsed(ctx context.Context, wallet, id string, usedAt time.Time) error
	Wallets(ctx context.Context) ([]string, error)
}

// HistoryStore is the append/query boundary for the transaction audit trail.
type HistoryStore interface {
	Append(ctx context.Context, tx *models.PaymentTransaction) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, txHash *string, confirmedAt *time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]*models.PaymentTransaction, error)
}

// WebhookAuditStore records one entry per webhook call, keyed by request id.
type WebhookAuditStore interface {
	Record(ctx context.Context, e *models.WebhookExecution) error
	ListByWallet(ctx context.Context, wallet string, limit int) ([]models.WebhookExecution, error)
	GetByRequestID(ctx context.Context, requestID string) ([]models.WebhookExecution, error)
}
