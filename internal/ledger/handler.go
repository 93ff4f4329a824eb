package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/minihive/backend/internal/middleware"
	"github.com/minihive/backend/internal/models"
)

// HistoryStore is the read side of the ledger served over HTTP.
type HistoryStore interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.CoinEntry, error)
}

type Handler struct {
	store HistoryStore
	log   *slog.Logger
}

func NewHandler(store HistoryStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, log: log}
}

// History handles GET /api/v1/coin-ledger and returns the caller's
// own entries, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.store.ListByUserID(r.Context(), id.UserID)
	if err != nil {
		h.log.Error("list coin ledger", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CoinEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(entries)
}
