package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/minihive/backend/internal/middleware"
	"github.com/minihive/backend/internal/models"
)

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

type createTaskRequest struct {
	Title           string `json:"task_title"`
	Detail          string `json:"task_detail"`
	SubmissionInfo  string `json:"submission_info"`
	ImageURL        string `json:"task_image_url"`
	PayableAmount   int    `json:"payable_amount"`
	RequiredWorkers int    `json:"required_workers"`
	CompletionDate  string `json:"completion_date"`
}

// Create handles POST /api/v1/tasks (buyer).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if id.Role != models.RoleBuyer {
		http.Error(w, `{"error":"only buyers can post tasks"}`, http.StatusForbidden)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"task_title is required"}`, http.StatusBadRequest)
		return
	}
	if req.PayableAmount <= 0 {
		http.Error(w, `{"error":"payable_amount must be > 0"}`, http.StatusBadRequest)
		return
	}
	if req.RequiredWorkers <= 0 {
		http.Error(w, `{"error":"required_workers must be > 0"}`, http.StatusBadRequest)
		return
	}
	completionDate, err := time.Parse("2006-01-02", req.CompletionDate)
	if err != nil {
		http.Error(w, `{"error":"completion_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	task, err := h.svc.Create(r.Context(), id.UserID, CreateInput{
		Title:           req.Title,
		Detail:          req.Detail,
		SubmissionInfo:  req.SubmissionInfo,
		ImageURL:        req.ImageURL,
		PayableAmount:   req.PayableAmount,
		RequiredWorkers: req.RequiredWorkers,
		CompletionDate:  completionDate,
	})
	if err != nil {
		if errors.Is(err, ErrNotEnoughCoins) {
			writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "Not enough coins. Please purchase coins."})
			return
		}
		h.log.Error("create task", "error", err)
		http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListOpen handles GET /api/v1/tasks — tasks with open slots, for
// workers to browse.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListOpen(r.Context())
	if err != nil {
		h.log.Error("list open tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListMine handles GET /api/v1/tasks/my — the buyer's own tasks.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	tasks, err := h.svc.ListByBuyer(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list buyer tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/v1/tasks/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	task, err := h.svc.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get task", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateTaskRequest struct {
	Title          *string `json:"task_title"`
	Detail         *string `json:"task_detail"`
	SubmissionInfo *string `json:"submission_info"`
	ImageURL       *string `json:"task_image_url"`
}

// Update handles PATCH /api/v1/tasks/{id} — metadata only, owner
// only, no ledger effect.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	task, err := h.svc.UpdateMeta(r.Context(), taskID, id.UserID, MetaUpdate{
		Title:          req.Title,
		Detail:         req.Detail,
		SubmissionInfo: req.SubmissionInfo,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		h.writeTaskError(w, err, "update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/v1/tasks/{id} — owner only; refunds the
// remaining escrow.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.Delete(r.Context(), taskID, id.UserID); err != nil {
		h.writeTaskError(w, err, "delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminRemove handles DELETE /api/v1/admin/tasks/{id}. Role guard is
// applied by the router.
func (h *Handler) AdminRemove(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.AdminRemove(r.Context(), taskID); err != nil {
		h.writeTaskError(w, err, "admin remove task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	default:
		h.log.Error(op, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
