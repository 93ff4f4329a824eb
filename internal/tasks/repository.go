package tasks

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minihive/backend/internal/models"
)

const taskColumns = `id, buyer_id, task_title, task_detail, submission_info, task_image_url,
	payable_amount, required_workers, completion_date, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, buyer_id, task_title, task_detail, submission_info, task_image_url, payable_amount, required_workers, completion_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, t.ID, t.BuyerID, t.Title, t.Detail, t.SubmissionInfo, t.ImageURL, t.PayableAmount, t.RequiredWorkers, t.CompletionDate).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

// DecrementSlot only matches while open slots remain, so the N-th
// successful decrement of an N-slot task is the last one possible.
func (r *Repository) DecrementSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var remaining int
	err := tx.QueryRow(ctx, `
		UPDATE tasks SET required_workers = required_workers - 1, updated_at = now()
		WHERE id = $1 AND required_workers > 0
		RETURNING required_workers
	`, id).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a fully-worked task from a deleted one, reading
		// through tx so the check shares the UPDATE's snapshot.
		var exists bool
		if qErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); qErr != nil {
			return 0, qErr
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, ErrTaskFull
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *Repository) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *Repository) UpdateMeta(ctx context.Context, t *models.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET task_title = $2, task_detail = $3, submission_info = $4, task_image_url = $5, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Title, t.Detail, t.SubmissionInfo, t.ImageURL)
	return err
}

func (r *Repository) ListOpen(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE required_workers > 0 ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE buyer_id = $1 ORDER BY created_at DESC
	`, buyerID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.BuyerID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.ImageURL,
		&t.PayableAmount, &t.RequiredWorkers, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.BuyerID, &t.Title, &t.Detail, &t.SubmissionInfo, &t.ImageURL,
			&t.PayableAmount, &t.RequiredWorkers, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
