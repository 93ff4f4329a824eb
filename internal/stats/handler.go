package stats

import (
	"encoding/json"
	"log/slog"
	"net/http"

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

// Global handles GET /api/v1/admin/stats (admin).
func (h *Handler) Global(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Global(r.Context())
	if err != nil {
		h.log.Error("global stats", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Mine handles GET /api/v1/stats/my and dispatches on the caller's
// role.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var (
		v   any
		err error
	)
	switch id.Role {
	case models.RoleBuyer:
		v, err = h.svc.Buyer(r.Context(), id.UserID)
	case models.RoleWorker:
		v, err = h.svc.Worker(r.Context(), id.UserID)
	default:
		v, err = h.svc.Global(r.Context())
	}
	if err != nil {
		h.log.Error("role stats", "error", err, "role", id.Role)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// BestWorkers handles GET /api/v1/stats/best-workers (public).
func (h *Handler) BestWorkers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.BestWorkers(r.Context())
	if err != nil {
		h.log.Error("best workers", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
