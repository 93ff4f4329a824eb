package submissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
	"github.com/minihive/backend/internal/tasks"
)

var (
	// ErrTaskClosed is returned when submitting against a task with
	// no open slots (or one that no longer exists).
	ErrTaskClosed = errors.New("task is closed")
	// ErrAlreadyDecided is returned when a second decision reaches a
	// submission. Decisions are terminal; the loser of a race sees
	// this.
	ErrAlreadyDecided = errors.New("submission already decided")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("submission not found")
)

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the submission persistence contract.
type Store interface {
	// Insert creates the pending submission iff the task still has
	// open slots, filling BuyerID, TaskTitle, PayableAmount and
	// SubmittedAt from the task in the same atomic statement. A
	// missing or closed task yields ErrTaskClosed and no row.
	Insert(ctx context.Context, s *models.Submission) error
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	// SetStatus compare-and-sets status from→to and stamps
	// decided_at, returning ErrAlreadyDecided when the submission is
	// not in the from state. At most one decision ever commits.
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) error
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error)
	ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error)
}

// TaskSlots is the slice of the task registry the workflow needs.
type TaskSlots interface {
	DecrementSlot(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int, error)
}

// Service drives the pending → approved | rejected state machine.
// Approval consumes exactly one task slot and pays the worker in a
// single transaction; rejection touches neither slots nor coins.
type Service interface {
	Submit(ctx context.Context, taskID, workerID uuid.UUID, detail string) (*models.Submission, error)
	Approve(ctx context.Context, submissionID, requesterID uuid.UUID, requesterRole models.Role) error
	Reject(ctx context.Context, submissionID, requesterID uuid.UUID, requesterRole models.Role) error
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error)
	ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error)
}

type service struct {
	db     TxBeginner
	store  Store
	tasks  TaskSlots
	ledger ledger.Service
}

func NewService(db TxBeginner, store Store, taskSlots TaskSlots, ledgerSvc ledger.Service) Service {
	return &service{db: db, store: store, tasks: taskSlots, ledger: ledgerSvc}
}

var _ Service = (*service)(nil)

// Submit creates a pending submission against an open task. The
// open-slot check and the buyer/payout denormalization happen inside
// the store's guarded insert, so a task closing or disappearing
// concurrently can never leave a submission behind.
func (s *service) Submit(ctx context.Context, taskID, workerID uuid.UUID, detail string) (*models.Submission, error) {
	sub := &models.Submission{
		ID:       uuid.New(),
		TaskID:   taskID,
		WorkerID: workerID,
		Detail:   detail,
		Status:   models.SubmissionPending,
	}
	if err := s.store.Insert(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Approve consumes a slot and credits the worker, all-or-nothing.
// The slot decrement goes first: if the task is already fully worked
// the approval fails with the task registry's ErrTaskFull and the
// submission stays pending for the buyer to reject or abandon.
func (s *service) Approve(ctx context.Context, submissionID, requesterID uuid.UUID, requesterRole models.Role) error {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	if err := authorize(sub, requesterID, requesterRole); err != nil {
		return err
	}
	if sub.Status != models.SubmissionPending {
		return ErrAlreadyDecided
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := s.tasks.DecrementSlot(ctx, tx, sub.TaskID); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			return ErrTaskClosed
		}
		return err
	}
	if err := s.store.SetStatus(ctx, tx, sub.ID, models.SubmissionPending, models.SubmissionApproved); err != nil {
		return err
	}
	if _, err := s.ledger.Credit(ctx, tx, sub.WorkerID, sub.PayableAmount, ledger.Entry{
		Type:   models.CoinEntryTaskEarning,
		TaskID: &sub.TaskID,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Reject marks the submission rejected. No ledger or slot change: a
// pending submission never consumed a slot, so nothing needs
// refunding.
func (s *service) Reject(ctx context.Context, submissionID, requesterID uuid.UUID, requesterRole models.Role) error {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return err
	}
	if err := authorize(sub, requesterID, requesterRole); err != nil {
		return err
	}
	if sub.Status != models.SubmissionPending {
		return ErrAlreadyDecided
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.store.SetStatus(ctx, tx, sub.ID, models.SubmissionPending, models.SubmissionRejected); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error) {
	return s.store.ListByWorker(ctx, workerID)
}

func (s *service) ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return s.store.ListPendingForBuyer(ctx, buyerID)
}

// authorize allows the owning buyer or an admin to decide a
// submission.
func authorize(sub *models.Submission, requesterID uuid.UUID, role models.Role) error {
	if role == models.RoleAdmin {
		return nil
	}
	if sub.BuyerID != requesterID {
		return ErrForbidden
	}
	return nil
}
