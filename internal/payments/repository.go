package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minihive/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, p *models.Payment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payments (id, buyer_id, coins, price_usd)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, p.ID, p.BuyerID, p.Coins, p.PriceUSD).Scan(&p.CreatedAt)
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_id, coins, price_usd, created_at
		FROM payments WHERE buyer_id = $1 ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.Coins, &p.PriceUSD, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
