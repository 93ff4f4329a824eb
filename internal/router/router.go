package router

import (
	"net/http"

	"github.com/minihive/backend/internal/auth"
	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/middleware"
	"github.com/minihive/backend/internal/models"
	"github.com/minihive/backend/internal/payments"
	"github.com/minihive/backend/internal/stats"
	"github.com/minihive/backend/internal/submissions"
	"github.com/minihive/backend/internal/tasks"
	"github.com/minihive/backend/internal/withdrawals"
)

// Handlers collects the per-feature HTTP handlers the router wires up.
type Handlers struct {
	Auth        *auth.Handler
	Ledger      *ledger.Handler
	Tasks       *tasks.Handler
	Submissions *submissions.Handler
	Withdrawals *withdrawals.Handler
	Payments    *payments.Handler
	Stats       *stats.Handler
}

// New returns an http.Handler serving the API under /api/v1.
// Authentication is the RequireAuth middleware; admin-only surfaces
// additionally chain RequireRole. Finer checks (ownership, worker vs
// buyer per operation) live in the handlers and services.
func New(h Handlers, validator middleware.TokenValidator) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	authed := middleware.RequireAuth(validator)
	admin := func(hf http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(models.RoleAdmin)(hf))
	}

	// Public.
	mux.HandleFunc("POST "+base+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)
	mux.HandleFunc("GET "+base+"/stats/best-workers", h.Stats.BestWorkers)

	// Authenticated.
	mux.Handle("GET "+base+"/auth/me", authed(http.HandlerFunc(h.Auth.Me)))
	mux.Handle("GET "+base+"/coin-ledger", authed(http.HandlerFunc(h.Ledger.History)))
	mux.Handle("GET "+base+"/stats/my", authed(http.HandlerFunc(h.Stats.Mine)))

	mux.Handle("POST "+base+"/tasks", authed(http.HandlerFunc(h.Tasks.Create)))
	mux.Handle("GET "+base+"/tasks", authed(http.HandlerFunc(h.Tasks.ListOpen)))
	mux.Handle("GET "+base+"/tasks/my", authed(http.HandlerFunc(h.Tasks.ListMine)))
	mux.Handle("GET "+base+"/tasks/{id}", authed(http.HandlerFunc(h.Tasks.Get)))
	mux.Handle("PATCH "+base+"/tasks/{id}", authed(http.HandlerFunc(h.Tasks.Update)))
	mux.Handle("DELETE "+base+"/tasks/{id}", authed(http.HandlerFunc(h.Tasks.Delete)))

	mux.Handle("POST "+base+"/submissions", authed(http.HandlerFunc(h.Submissions.Submit)))
	mux.Handle("GET "+base+"/submissions/my", authed(http.HandlerFunc(h.Submissions.ListMine)))
	mux.Handle("GET "+base+"/submissions/pending", authed(http.HandlerFunc(h.Submissions.ListPending)))
	mux.Handle("POST "+base+"/submissions/{id}/approve", authed(http.HandlerFunc(h.Submissions.Approve)))
	mux.Handle("POST "+base+"/submissions/{id}/reject", authed(http.HandlerFunc(h.Submissions.Reject)))

	mux.Handle("POST "+base+"/withdrawals", authed(http.HandlerFunc(h.Withdrawals.Request)))
	mux.Handle("GET "+base+"/withdrawals/my", authed(http.HandlerFunc(h.Withdrawals.ListMine)))

	mux.Handle("POST "+base+"/payments", authed(http.HandlerFunc(h.Payments.Purchase)))
	mux.Handle("GET "+base+"/payments/my", authed(http.HandlerFunc(h.Payments.History)))

	// Admin.
	mux.Handle("GET "+base+"/admin/stats", admin(h.Stats.Global))
	mux.Handle("GET "+base+"/admin/users", admin(h.Auth.ListUsers))
	mux.Handle("PATCH "+base+"/admin/users/{id}/role", admin(h.Auth.UpdateUserRole))
	mux.Handle("DELETE "+base+"/admin/users/{id}", admin(h.Auth.RemoveUser))
	mux.Handle("DELETE "+base+"/admin/tasks/{id}", admin(h.Tasks.AdminRemove))
	mux.Handle("GET "+base+"/admin/withdrawals", admin(h.Withdrawals.ListPending))
	mux.Handle("POST "+base+"/admin/withdrawals/{id}/approve", admin(h.Withdrawals.Approve))

	return mux
}
