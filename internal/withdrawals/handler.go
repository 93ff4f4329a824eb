package withdrawals

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/minihive/backend/internal/ledger"
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

type requestBody struct {
	WithdrawalCoin int    `json:"withdrawal_coin"`
	PaymentSystem  string `json:"payment_system"`
	AccountNumber  string `json:"account_number"`
}

// Request handles POST /api/v1/withdrawals (worker).
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if id.Role != models.RoleWorker {
		http.Error(w, `{"error":"only workers can withdraw"}`, http.StatusForbidden)
		return
	}
	var req requestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if !models.PaymentSystems[req.PaymentSystem] {
		http.Error(w, `{"error":"unknown payment system"}`, http.StatusBadRequest)
		return
	}
	if req.AccountNumber == "" {
		http.Error(w, `{"error":"account_number is required"}`, http.StatusBadRequest)
		return
	}
	wd, err := h.svc.Request(r.Context(), id.UserID, req.WithdrawalCoin, req.PaymentSystem, req.AccountNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrBelowMinimum):
			http.Error(w, `{"error":"minimum withdrawal is 200 coins"}`, http.StatusBadRequest)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			http.Error(w, `{"error":"insufficient coin balance"}`, http.StatusPaymentRequired)
		default:
			h.log.Error("request withdrawal", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// ListMine handles GET /api/v1/withdrawals/my (worker).
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByWorker(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list withdrawals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListPending handles GET /api/v1/admin/withdrawals (admin).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context())
	if err != nil {
		h.log.Error("list pending withdrawals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Approve handles POST /api/v1/admin/withdrawals/{id}/approve (admin).
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	wdID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.Approve(r.Context(), wdID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrAlreadyApproved):
			http.Error(w, `{"error":"withdrawal already decided"}`, http.StatusConflict)
		default:
			h.log.Error("approve withdrawal", "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	wd, err := h.svc.Get(r.Context(), wdID)
	if err != nil {
		h.log.Error("reload withdrawal", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
