package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
	"github.com/minihive/backend/internal/payout"
)

var (
	// ErrBelowMinimum is returned when the requested coin amount is
	// under the cash-out floor.
	ErrBelowMinimum = errors.New("withdrawal below minimum")
	// ErrAlreadyApproved is returned when a decision reaches a
	// withdrawal that is no longer pending.
	ErrAlreadyApproved = errors.New("withdrawal already decided")
	ErrNotFound        = errors.New("withdrawal not found")
)

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the withdrawal persistence contract.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	// SetStatus compare-and-sets status from→to and stamps decided_at.
	// It reports whether a row was updated; false means the withdrawal
	// was not in the from state.
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error)
	ListPending(ctx context.Context) ([]*models.Withdrawal, error)
}

// InsertPayoutTxFunc enqueues a payout delivery within the given
// transaction. Provided by main as a closure over river.Client.InsertTx.
type InsertPayoutTxFunc func(ctx context.Context, tx pgx.Tx, args payout.PayoutJobArgs) error

// Service runs the withdrawal pipeline: coins leave the worker's
// balance the moment the request is accepted, approval hands the
// payout to the external rail, and a rail failure returns the coins.
type Service interface {
	Request(ctx context.Context, workerID uuid.UUID, coins int, paymentSystem, accountNumber string) (*models.Withdrawal, error)
	Approve(ctx context.Context, withdrawalID uuid.UUID) error
	MarkFailed(ctx context.Context, withdrawalID uuid.UUID, reason string) error
	Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error)
	ListPending(ctx context.Context) ([]*models.Withdrawal, error)
}

type service struct {
	db           TxBeginner
	store        Store
	ledger       ledger.Service
	insertPayout InsertPayoutTxFunc
}

// NewService returns *service so main can also hand it to the payout
// worker as its payout.WithdrawalService.
func NewService(db TxBeginner, store Store, ledgerSvc ledger.Service, insertPayout InsertPayoutTxFunc) *service {
	return &service{db: db, store: store, ledger: ledgerSvc, insertPayout: insertPayout}
}

var (
	_ Service                  = (*service)(nil)
	_ payout.WithdrawalService = (*service)(nil)
)

// Request debits the coins up front and records the pending
// withdrawal in one transaction. A worker can therefore never have
// more coins in flight than they hold.
func (s *service) Request(ctx context.Context, workerID uuid.UUID, coins int, paymentSystem, accountNumber string) (*models.Withdrawal, error) {
	if coins < models.MinWithdrawalCoins {
		return nil, ErrBelowMinimum
	}
	w := &models.Withdrawal{
		ID:               uuid.New(),
		WorkerID:         workerID,
		WithdrawalCoin:   coins,
		WithdrawalAmount: models.USDAmount(coins),
		PaymentSystem:    paymentSystem,
		AccountNumber:    accountNumber,
		Status:           models.WithdrawalPending,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.Insert(ctx, tx, w); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Debit(ctx, tx, workerID, coins, ledger.Entry{
		Type:         models.CoinEntryWithdrawalHold,
		WithdrawalID: &w.ID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Approve flips the withdrawal to approved and enqueues the payout
// delivery in the same transaction, so an enqueue failure leaves the
// withdrawal pending.
func (s *service) Approve(ctx context.Context, withdrawalID uuid.UUID) error {
	w, err := s.store.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updated, err := s.store.SetStatus(ctx, tx, w.ID, models.WithdrawalPending, models.WithdrawalApproved)
	if err != nil {
		return err
	}
	if !updated {
		return ErrAlreadyApproved
	}
	if err := s.insertPayout(ctx, tx, payout.PayoutJobArgs{
		WithdrawalID:  w.ID,
		WorkerID:      w.WorkerID,
		AmountUSD:     w.WithdrawalAmount,
		PaymentSystem: w.PaymentSystem,
		AccountNumber: w.AccountNumber,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed implements payout.WithdrawalService. The rail rejected
// delivery, so the coins go back to the worker.
func (s *service) MarkFailed(ctx context.Context, withdrawalID uuid.UUID, reason string) error {
	w, err := s.store.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updated, err := s.store.SetStatus(ctx, tx, w.ID, models.WithdrawalApproved, models.WithdrawalFailed)
	if err != nil {
		return err
	}
	if !updated {
		return ErrAlreadyApproved
	}
	if _, err := s.ledger.Credit(ctx, tx, w.WorkerID, w.WithdrawalCoin, ledger.Entry{
		Type:         models.CoinEntryWithdrawalReturn,
		WithdrawalID: &w.ID,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return s.store.ListByWorker(ctx, workerID)
}

func (s *service) ListPending(ctx context.Context) ([]*models.Withdrawal, error) {
	return s.store.ListPending(ctx)
}
