package submissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minihive/backend/internal/models"
)

const submissionColumns = `id, task_id, worker_id, buyer_id, task_title, payable_amount,
	submission_detail, status, submitted_at, decided_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Insert creates the row only while the task still has open slots,
// sourcing buyer_id, task_title and payable_amount from the task in
// the same statement. No window for the task to close or vanish
// between check and insert.
func (r *Repository) Insert(ctx context.Context, s *models.Submission) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, worker_id, buyer_id, task_title, payable_amount, submission_detail, status)
		SELECT $1, t.id, $2, t.buyer_id, t.task_title, t.payable_amount, $3, $4
		FROM tasks t
		WHERE t.id = $5 AND t.required_workers > 0
		RETURNING buyer_id, task_title, payable_amount, submitted_at
	`, s.ID, s.WorkerID, s.Detail, s.Status, s.TaskID).Scan(&s.BuyerID, &s.TaskTitle, &s.PayableAmount, &s.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTaskClosed
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var s models.Submission
	err := r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id).
		Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.BuyerID, &s.TaskTitle, &s.PayableAmount,
			&s.Detail, &s.Status, &s.SubmittedAt, &s.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetStatus is the decision compare-and-set: the UPDATE matches only
// while the submission is still in the from state.
func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE submissions SET status = $3, decided_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *Repository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE worker_id = $1 ORDER BY submitted_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repository) ListPendingForBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE buyer_id = $1 AND status = 'pending' ORDER BY submitted_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*models.Submission, error) {
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.BuyerID, &s.TaskTitle, &s.PayableAmount,
			&s.Detail, &s.Status, &s.SubmittedAt, &s.DecidedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
