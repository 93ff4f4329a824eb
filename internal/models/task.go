package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a posted micro-task. RequiredWorkers is the remaining
// open-slot counter: it starts at the posted worker count and is
// decremented by exactly one per approved submission. The buyer's
// escrow held against the task is always RequiredWorkers *
// PayableAmount.
type Task struct {
	ID              uuid.UUID `json:"id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	Title           string    `json:"task_title"`
	Detail          string    `json:"task_detail"`
	SubmissionInfo  string    `json:"submission_info"`
	ImageURL        string    `json:"task_image_url"`
	PayableAmount   int       `json:"payable_amount"`
	RequiredWorkers int       `json:"required_workers"`
	CompletionDate  time.Time `json:"completion_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Open reports whether the task still accepts submissions.
func (t *Task) Open() bool { return t.RequiredWorkers > 0 }
