package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/minihive/backend/internal/middleware"
	"github.com/minihive/backend/internal/models"
	"github.com/minihive/backend/internal/tasks"
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

type submitRequest struct {
	TaskID string `json:"task_id"`
	Detail string `json:"submission_detail"`
}

// Submit handles POST /api/v1/submissions (worker).
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if id.Role != models.RoleWorker {
		http.Error(w, `{"error":"only workers can submit"}`, http.StatusForbidden)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		http.Error(w, `{"error":"invalid task_id"}`, http.StatusBadRequest)
		return
	}
	sub, err := h.svc.Submit(r.Context(), taskID, id.UserID, req.Detail)
	if err != nil {
		if errors.Is(err, ErrTaskClosed) {
			http.Error(w, `{"error":"task is closed"}`, http.StatusConflict)
			return
		}
		h.log.Error("submit", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Approve handles POST /api/v1/submissions/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Approve)
}

// Reject handles POST /api/v1/submissions/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, submissionID, requesterID uuid.UUID, role models.Role) error) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	subID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid submission id"}`, http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), subID, id.UserID, id.Role); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"submission not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrForbidden):
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		case errors.Is(err, ErrAlreadyDecided):
			http.Error(w, `{"error":"submission already decided"}`, http.StatusConflict)
		case errors.Is(err, tasks.ErrTaskFull):
			http.Error(w, `{"error":"task has no open slots"}`, http.StatusConflict)
		case errors.Is(err, ErrTaskClosed):
			http.Error(w, `{"error":"task is closed"}`, http.StatusConflict)
		default:
			h.log.Error("decide submission", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	sub, err := h.svc.Get(r.Context(), subID)
	if err != nil {
		h.log.Error("reload submission", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListMine handles GET /api/v1/submissions/my (worker).
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	subs, err := h.svc.ListByWorker(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list worker submissions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListPending handles GET /api/v1/submissions/pending (buyer).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	subs, err := h.svc.ListPendingForBuyer(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list pending submissions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
