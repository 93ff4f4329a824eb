package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission statuses. pending is the only non-terminal state; a
// submission is decided at most once and never leaves approved or
// rejected.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission records one worker's answer to a task. BuyerID and
// PayableAmount are denormalized from the task at submit time so a
// later task edit or deletion cannot change what the worker is owed.
type Submission struct {
	ID            uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	WorkerID      uuid.UUID  `json:"worker_id"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	TaskTitle     string     `json:"task_title"`
	PayableAmount int        `json:"payable_amount"`
	Detail        string     `json:"submission_detail"`
	Status        string     `json:"status"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}
