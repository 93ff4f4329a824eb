package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
)

// ErrUnknownPackage is returned for a coin amount that is not one of
// the fixed purchase packages.
var ErrUnknownPackage = errors.New("unknown coin package")

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, p *models.Payment) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error)
}

// Service records confirmed coin purchases. The fiat charge happens
// on the external gateway before this is called; here the coins are
// credited and the payment archived in one transaction.
type Service interface {
	Purchase(ctx context.Context, buyerID uuid.UUID, coins int) (*models.Payment, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error)
}

type service struct {
	db     TxBeginner
	store  Store
	ledger ledger.Service
}

func NewService(db TxBeginner, store Store, ledgerSvc ledger.Service) Service {
	return &service{db: db, store: store, ledger: ledgerSvc}
}

var _ Service = (*service)(nil)

func (s *service) Purchase(ctx context.Context, buyerID uuid.UUID, coins int) (*models.Payment, error) {
	price, ok := models.CoinPackages[coins]
	if !ok {
		return nil, ErrUnknownPackage
	}
	p := &models.Payment{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		Coins:    coins,
		PriceUSD: price,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.Insert(ctx, tx, p); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Credit(ctx, tx, buyerID, coins, ledger.Entry{
		Type:      models.CoinEntryCoinPurchase,
		PaymentID: &p.ID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}
