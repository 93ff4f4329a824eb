package stats

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BestWorker is one row of the public top-workers list.
type BestWorker struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhotoURL    string    `json:"photo_url"`
	CoinBalance int       `json:"coin_balance"`
}

// GlobalStats is the admin platform rollup.
type GlobalStats struct {
	TotalWorkers       int             `json:"total_workers"`
	TotalBuyers        int             `json:"total_buyers"`
	CoinsInCirculation int             `json:"coins_in_circulation"`
	TotalPaidUSD       decimal.Decimal `json:"total_paid_usd"`
	BestWorkers        []BestWorker    `json:"best_workers"`
}

// BuyerStats summarizes a buyer's side of the marketplace.
type BuyerStats struct {
	TaskCount     int             `json:"task_count"`
	OpenSlots     int             `json:"open_slots"`
	CoinsEscrowed int             `json:"coins_escrowed"`
	TotalSpendUSD decimal.Decimal `json:"total_spend_usd"`
}

// WorkerStats summarizes a worker's submissions and earnings.
type WorkerStats struct {
	TotalSubmissions    int `json:"total_submissions"`
	PendingSubmissions  int `json:"pending_submissions"`
	ApprovedSubmissions int `json:"approved_submissions"`
	TotalEarnedCoins    int `json:"total_earned_coins"`
}

// Store runs each report's queries against a single snapshot, so the
// numbers in one report are mutually consistent.
type Store interface {
	Global(ctx context.Context) (*GlobalStats, error)
	Buyer(ctx context.Context, buyerID uuid.UUID) (*BuyerStats, error)
	Worker(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error)
}

type Service interface {
	Global(ctx context.Context) (*GlobalStats, error)
	Buyer(ctx context.Context, buyerID uuid.UUID) (*BuyerStats, error)
	Worker(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error)
	BestWorkers(ctx context.Context) ([]BestWorker, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Global(ctx context.Context) (*GlobalStats, error) {
	return s.store.Global(ctx)
}

func (s *service) Buyer(ctx context.Context, buyerID uuid.UUID) (*BuyerStats, error) {
	return s.store.Buyer(ctx, buyerID)
}

func (s *service) Worker(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error) {
	return s.store.Worker(ctx, workerID)
}

// BestWorkers is the public slice of the global rollup, shown on the
// landing page without authentication.
func (s *service) BestWorkers(ctx context.Context) ([]BestWorker, error) {
	g, err := s.store.Global(ctx)
	if err != nil {
		return nil, err
	}
	if g.BestWorkers == nil {
		return []BestWorker{}, nil
	}
	return g.BestWorkers, nil
}
