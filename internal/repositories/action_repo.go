package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/backend/internal/models"
)

// ActionRepo is the postgres-backed ActionStore.
type ActionRepo struct {
	pool *pgxpool.Pool
}

func NewActionRepo(pool *pgxpool.Pool) *ActionRepo {
	return &ActionRepo{pool: pool}
}

func (r *ActionRepo) Create(ctx context.Context, a *models.PaymentAction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_actions (
			wallet_address, id, name, action_type, recipient_address,
			amount, token, chain_id, schedule, triggers,
			is_pinned, is_enabled, usage_count, last_used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, a.WalletAddress, a.ID, a.Name, a.ActionType, a.RecipientAddress,
		a.Amount, a.Token, a.ChainID, a.Schedule, a.Triggers,
		a.IsPinned, a.IsEnabled, a.UsageCount, a.LastUsed,
	).Scan(&a.CreatedAt)
}

func (r *ActionRepo) Get(ctx context.Context, wallet, id string) (*models.PaymentAction, error) {
	var a models.PaymentAction
	err := r.pool.QueryRow(ctx, `
		SELECT wallet_address, id, name, action_type, recipient_address,
		       amount, token, chain_id, schedule, triggers,
		       is_pinned, is_enabled, usage_count, last_used, created_at
		FROM payment_actions
		WHERE wallet_address = $1 AND id = $2
	`, wallet, id).Scan(
		&a.WalletAddress, &a.ID, &a.Name, &a.ActionType, &a.RecipientAddress,
		&a.Amount, &a.Token, &a.ChainID, &a.Schedule, &a.Triggers,
		&a.IsPinned, &a.IsEnabled, &a.UsageCount, &a.LastUsed, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActionRepo) List(ctx context.Context, wallet string, f ActionFilter) ([]*models.PaymentAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT wallet_address, id, name, action_type, recipient_address,
		       amount, token, chain_id, schedule, triggers,
		       is_pinned, is_enabled, usage_count, last_used, created_at
		FROM payment_actions
		WHERE wallet_address = $1
		  AND ($2::text IS NULL OR action_type = $2)
		  AND ($3::boolean IS NULL OR is_enabled = $3)
		ORDER BY created_at DESC
	`, wallet, f.ActionType, f.Enabled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*models.PaymentAction
	for rows.Next() {
		var a models.PaymentAction
		if err := rows.Scan(
			&a.WalletAddress, &a.ID, &a.Name, &a.ActionType, &a.RecipientAddress,
			&a.Amount, &a.Token, &a.ChainID, &a.Schedule, &a.Triggers,
			&a.IsPinned, &a.IsEnabled, &a.UsageCount, &a.LastUsed, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

func (r *ActionRepo) Update(ctx context.Context, a *models.PaymentAction) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_actions SET
			name = $3, action_type = $4, recipient_address = $5,
			amount = $6, token = $7, chain_id = $8, schedule = $9,
			triggers = $10, is_pinned = $11, is_enabled = $12
		WHERE wallet_address = $1 AND id = $2
	`, a.WalletAddress, a.ID, a.Name, a.ActionType, a.RecipientAddress,
		a.Amount, a.Token, a.ChainID, a.Schedule,
		a.Triggers, a.IsPinned, a.IsEnabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ActionRepo) Delete(ctx context.Context, wallet, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM payment_actions WHERE wallet_address = $1 AND id = $2
	`, wallet, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ActionRepo) MarkUsed(ctx context.Context, wallet, id string, usedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_actions
		SET usage_count = usage_count + 1, last_used = $3
		WHERE wallet_address = $1 AND id = $2
	`, wallet, id, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ActionRepo) Wallets(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT wallet_address FROM payment_actions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
