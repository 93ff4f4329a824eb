package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minihive/backend/internal/models"
)

// Repository implements Store against Postgres. All methods run
// inside the caller's transaction.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// DeductCoins is the system's core safety check: the UPDATE only
// matches when the balance covers the amount, so a concurrent debit
// can never drive a balance negative.
func (r *Repository) DeductCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	var newBalance int
	err := tx.QueryRow(ctx, `
		UPDATE users SET coin_balance = coin_balance - $1, updated_at = now()
		WHERE id = $2 AND coin_balance >= $1
		RETURNING coin_balance
	`, amount, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *Repository) AddCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	var newBalance int
	err := tx.QueryRow(ctx, `
		UPDATE users SET coin_balance = coin_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING coin_balance
	`, amount, userID).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coin_ledger (id, user_id, task_id, withdrawal_id, payment_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.UserID, e.TaskID, e.WithdrawalID, e.PaymentID, e.EntryType, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

// ListByUserID returns a user's ledger entries, newest first.
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CoinEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, task_id, withdrawal_id, payment_id, entry_type, amount, balance_after, created_at
		FROM coin_ledger WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CoinEntry
	for rows.Next() {
		var e models.CoinEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.WithdrawalID, &e.PaymentID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
