package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/backend/internal/models"
)

// HistoryRepo is the postgres-backed HistoryStore.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

func (r *HistoryRepo) Append(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_transactions (
			id, wallet_address, action_id, status, ticket_id, transaction_hash,
			from_address, to_address, amount, token, fee, chain_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, tx.ID, tx.WalletAddress, tx.ActionID, tx.Status, tx.TicketID, tx.TransactionHash,
		tx.FromAddress, tx.ToAddress, tx.Amount, tx.Token, tx.Fee, tx.ChainID, tx.Metadata,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

func (r *HistoryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, txHash *string, confirmedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $2,
		    transaction_hash = COALESCE($3, transaction_hash),
		    confirmed_at = COALESCE($4, confirmed_at),
		    updated_at = now()
		WHERE id = $1
	`, id, status, txHash, confirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *HistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, wallet_address, action_id, status, ticket_id, transaction_hash,
		       from_address, to_address, amount, token, fee, chain_id, metadata,
		       created_at, confirmed_at, updated_at
		FROM payment_transactions WHERE id = $1
	`, id).Scan(
		&tx.ID, &tx.WalletAddress, &tx.ActionID, &tx.Status, &tx.TicketID, &tx.TransactionHash,
		&tx.FromAddress, &tx.ToAddress, &tx.Amount, &tx.Token, &tx.Fee, &tx.ChainID, &tx.Metadata,
		&tx.CreatedAt, &tx.ConfirmedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *HistoryRepo) ListByWallet(ctx context.Context, wallet string, limit int) ([]*models.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_address, action_id, status, ticket_id, transaction_hash,
		       from_address, to_address, amount, token, fee, chain_id, metadata,
		       created_at, confirmed_at, updated_at
		FROM payment_transactions
		WHERE wallet_address = $1
		ORDER BY created_at DESC LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.PaymentTransaction
	for rows.Next() {
		var tx models.PaymentTransaction
		if err := rows.Scan(
			&tx.ID, &tx.WalletAddress, &tx.ActionID, &tx.Status, &tx.TicketID, &tx.TransactionHash,
			&tx.FromAddress, &tx.ToAddress, &tx.Amount, &tx.Token, &tx.Fee, &tx.ChainID, &tx.Metadata,
			&tx.CreatedAt, &tx.ConfirmedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
