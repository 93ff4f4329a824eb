package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
)

var (
	// ErrNotEnoughCoins is returned when the buyer's balance cannot
	// cover the escrow for a new task.
	ErrNotEnoughCoins = errors.New("not enough coins")
	// ErrTaskFull is returned when a slot decrement finds no open
	// slots left. A legitimate business outcome under racing
	// approvals, never retried.
	ErrTaskFull  = errors.New("task has no open slots")
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("task not found")
)

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the task persistence contract.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, t *models.Task) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	// GetForUpdate locks the task row. Call within a transaction.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	// DecrementSlot atomically reduces required_workers by one iff it
	// is > 0, returning the remaining count or ErrTaskFull.
	DecrementSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	UpdateMeta(ctx context.Context, t *models.Task) error
	ListOpen(ctx context.Context) ([]*models.Task, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error)
}

// CreateInput holds the buyer-supplied task fields.
type CreateInput struct {
	Title           string
	Detail          string
	SubmissionInfo  string
	ImageURL        string
	PayableAmount   int
	RequiredWorkers int
	CompletionDate  time.Time
}

// MetaUpdate holds the editable non-economic fields. Nil means keep.
type MetaUpdate struct {
	Title          *string
	Detail         *string
	SubmissionInfo *string
	ImageURL       *string
}

// Service owns task records and the escrow of buyer coins held
// against them for the task's lifetime.
type Service interface {
	Create(ctx context.Context, buyerID uuid.UUID, in CreateInput) (*models.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListOpen(ctx context.Context) ([]*models.Task, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error)
	// DecrementSlot runs inside the caller's transaction; it is the
	// serialization point that caps approvals at the posted worker
	// count.
	DecrementSlot(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int, error)
	Delete(ctx context.Context, taskID, requesterID uuid.UUID) error
	// AdminRemove deletes any task, refunding the owning buyer's
	// remaining escrow. Callers must have verified the admin role.
	AdminRemove(ctx context.Context, taskID uuid.UUID) error
	UpdateMeta(ctx context.Context, taskID, requesterID uuid.UUID, upd MetaUpdate) (*models.Task, error)
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

// Create escrows payable_amount * required_workers from the buyer and
// persists the task in the same transaction. On insufficient funds
// nothing is written.
func (s *service) Create(ctx context.Context, buyerID uuid.UUID, in CreateInput) (*models.Task, error) {
	task := &models.Task{
		ID:              uuid.New(),
		BuyerID:         buyerID,
		Title:           in.Title,
		Detail:          in.Detail,
		SubmissionInfo:  in.SubmissionInfo,
		ImageURL:        in.ImageURL,
		PayableAmount:   in.PayableAmount,
		RequiredWorkers: in.RequiredWorkers,
		CompletionDate:  in.CompletionDate,
	}
	cost := in.PayableAmount * in.RequiredWorkers

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.ledger.Debit(ctx, tx, buyerID, cost, ledger.Entry{
		Type:   models.CoinEntryTaskEscrow,
		TaskID: &task.ID,
	}); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, ErrNotEnoughCoins
		}
		return nil, err
	}
	if err := s.store.Insert(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListOpen(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListOpen(ctx)
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

func (s *service) DecrementSlot(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int, error) {
	return s.store.DecrementSlot(ctx, tx, taskID)
}

func (s *service) Delete(ctx context.Context, taskID, requesterID uuid.UUID) error {
	return s.remove(ctx, taskID, &requesterID)
}

func (s *service) AdminRemove(ctx context.Context, taskID uuid.UUID) error {
	return s.remove(ctx, taskID, nil)
}

// remove deletes the task and refunds the remaining escrow to the
// owning buyer. The refund uses the current (possibly already
// decremented) slot count, so approved payouts stay paid.
func (s *service) remove(ctx context.Context, taskID uuid.UUID, requesterID *uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	task, err := s.store.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if requesterID != nil && task.BuyerID != *requesterID {
		return ErrForbidden
	}
	if refund := task.RequiredWorkers * task.PayableAmount; refund > 0 {
		if _, err := s.ledger.Credit(ctx, tx, task.BuyerID, refund, ledger.Entry{
			Type:   models.CoinEntryEscrowRefund,
			TaskID: &task.ID,
		}); err != nil {
			return err
		}
	}
	if err := s.store.DeleteTx(ctx, tx, taskID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateMeta edits title/detail/submission info only. No ledger
// effect; worker payouts are protected by the amounts denormalized
// onto submissions.
func (s *service) UpdateMeta(ctx context.Context, taskID, requesterID uuid.UUID, upd MetaUpdate) (*models.Task, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.BuyerID != requesterID {
		return nil, ErrForbidden
	}
	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Detail != nil {
		task.Detail = *upd.Detail
	}
	if upd.SubmissionInfo != nil {
		task.SubmissionInfo = *upd.SubmissionInfo
	}
	if upd.ImageURL != nil {
		task.ImageURL = *upd.ImageURL
	}
	if err := s.store.UpdateMeta(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}
