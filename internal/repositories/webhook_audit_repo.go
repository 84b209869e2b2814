package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/backend/internal/models"
)

// WebhookAuditRepo is the postgres-backed WebhookAuditStore.
type WebhookAuditRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookAuditRepo(pool *pgxpool.Pool) *WebhookAuditRepo {
	return &WebhookAuditRepo{pool: pool}
}

func (r *WebhookAuditRepo) Record(ctx context.Context, e *models.WebhookExecution) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO webhook_executions (
			id, request_id, agent_id, wallet_address, event_type,
			action_id, status, ticket_id, error, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, e.ID, e.RequestID, e.AgentID, e.WalletAddress, e.EventType,
		e.ActionID, e.Status, e.TicketID, e.Error, e.Meta,
	).Scan(&e.CreatedAt)
}

func (r *WebhookAuditRepo) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.WebhookExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, agent_id, wallet_address, event_type,
		       action_id, status, ticket_id, error, meta, created_at
		FROM webhook_executions
		WHERE wallet_address = $1
		ORDER BY created_at DESC LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhookExecutions(rows)
}

func (r *WebhookAuditRepo) GetByRequestID(ctx context.Context, requestID string) ([]models.WebhookExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, agent_id, wallet_address, event_type,
		       action_id, status, ticket_id, error, meta, created_at
		FROM webhook_executions
		WHERE request_id = $1
		ORDER BY created_at
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhookExecutions(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanWebhookExecutions(rows rowScanner) ([]models.WebhookExecution, error) {
	var entries []models.WebhookExecution
	for rows.Next() {
		var e models.WebhookExecution
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.AgentID, &e.WalletAddress, &e.EventType,
			&e.ActionID, &e.Status, &e.TicketID, &e.Error, &e.Meta, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
