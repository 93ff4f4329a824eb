package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minihive/backend/internal/models"
)

const withdrawalColumns = `id, worker_id, withdrawal_coin, withdrawal_amount,
	payment_system, account_number, status, requested_at, decided_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, worker_id, withdrawal_coin, withdrawal_amount, payment_system, account_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING requested_at
	`, w.ID, w.WorkerID, w.WithdrawalCoin, w.WithdrawalAmount, w.PaymentSystem, w.AccountNumber, w.Status).Scan(&w.RequestedAt)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id).
		Scan(&w.ID, &w.WorkerID, &w.WithdrawalCoin, &w.WithdrawalAmount,
			&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt, &w.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawals SET status = $3, decided_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE worker_id = $1 ORDER BY requested_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) ListPending(ctx context.Context) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = 'pending' ORDER BY requested_at
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*models.Withdrawal, error) {
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.WorkerID, &w.WithdrawalCoin, &w.WithdrawalAmount,
			&w.PaymentSystem, &w.AccountNumber, &w.Status, &w.RequestedAt, &w.DecidedAt); err != nil {
			return nil, err
		}
		list = append(list, &w)
	}
	return list, rows.Err()
}
