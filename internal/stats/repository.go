package stats

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// snapshot runs fn inside a repeatable-read read-only transaction, so
// every query in one report sees the same committed state.
func (r *Repository) snapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Global(ctx context.Context) (*GlobalStats, error) {
	var g GlobalStats
	err := r.snapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT
				count(*) FILTER (WHERE role = 'worker'),
				count(*) FILTER (WHERE role = 'buyer'),
				COALESCE(sum(coin_balance), 0)
			FROM users
		`).Scan(&g.TotalWorkers, &g.TotalBuyers, &g.CoinsInCirculation)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(sum(withdrawal_amount), 0)
			FROM withdrawals WHERE status = 'approved'
		`).Scan(&g.TotalPaidUSD)
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			SELECT id, name, photo_url, coin_balance
			FROM users WHERE role = 'worker'
			ORDER BY coin_balance DESC LIMIT 6
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b BestWorker
			if err := rows.Scan(&b.ID, &b.Name, &b.PhotoURL, &b.CoinBalance); err != nil {
				return err
			}
			g.BestWorkers = append(g.BestWorkers, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) Buyer(ctx context.Context, buyerID uuid.UUID) (*BuyerStats, error) {
	var b BuyerStats
	err := r.snapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT
				count(*),
				COALESCE(sum(required_workers), 0),
				COALESCE(sum(required_workers * payable_amount), 0)
			FROM tasks WHERE buyer_id = $1
		`, buyerID).Scan(&b.TaskCount, &b.OpenSlots, &b.CoinsEscrowed)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			SELECT COALESCE(sum(price_usd), 0)
			FROM payments WHERE buyer_id = $1
		`, buyerID).Scan(&b.TotalSpendUSD)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) Worker(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error) {
	var w WorkerStats
	err := r.snapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT
				count(*),
				count(*) FILTER (WHERE status = 'pending'),
				count(*) FILTER (WHERE status = 'approved'),
				COALESCE(sum(payable_amount) FILTER (WHERE status = 'approved'), 0)
			FROM submissions WHERE worker_id = $1
		`, workerID).Scan(&w.TotalSubmissions, &w.PendingSubmissions, &w.ApprovedSubmissions, &w.TotalEarnedCoins)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}
