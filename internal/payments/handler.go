package payments

import (
	"encoding/json"
	"errors"
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

type purchaseRequest struct {
	Coins int `json:"coins"`
}

// Purchase handles POST /api/v1/payments (buyer).
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if id.Role != models.RoleBuyer {
		http.Error(w, `{"error":"only buyers can purchase coins"}`, http.StatusForbidden)
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	p, err := h.svc.Purchase(r.Context(), id.UserID, req.Coins)
	if err != nil {
		if errors.Is(err, ErrUnknownPackage) {
			http.Error(w, `{"error":"unknown coin package"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("purchase", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// History handles GET /api/v1/payments/my (buyer).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByBuyer(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("payment history", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
