package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"
)

// PayoutJobArgs is the instruction handed to the payout rail for an
// approved withdrawal.
type PayoutJobArgs struct {
	WithdrawalID  uuid.UUID       `json:"withdrawal_id"`
	WorkerID      uuid.UUID       `json:"worker_id"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	PaymentSystem string          `json:"payment_system"`
	AccountNumber string          `json:"account_number"`
}

func (PayoutJobArgs) Kind() string { return "deliver_payout" }

// WithdrawalService is the contract the worker needs to report a rail
// rejection back into the withdrawal pipeline.
type WithdrawalService interface {
	MarkFailed(ctx context.Context, withdrawalID uuid.UUID, reason string) error
}

// DeliverPayoutWorker posts the payout instruction to the configured
// rail endpoint. Network errors are returned so River retries; a
// definitive rejection (4xx) marks the withdrawal failed, which
// returns the coins to the worker.
type DeliverPayoutWorker struct {
	river.WorkerDefaults[PayoutJobArgs]
	withdrawals WithdrawalService
	webhookURL  string
	httpClient  *http.Client
}

func NewDeliverPayoutWorker(ws WithdrawalService, webhookURL string) *DeliverPayoutWorker {
	return &DeliverPayoutWorker{
		withdrawals: ws,
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *DeliverPayoutWorker) Work(ctx context.Context, job *river.Job[PayoutJobArgs]) error {
	args := job.Args

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal payout instruction: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling payout rail: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The rail refused this instruction; retrying won't help.
		return w.failWithdrawal(ctx, args.WithdrawalID, fmt.Sprintf("payout rail rejected instruction: %d", resp.StatusCode))
	default:
		return fmt.Errorf("payout rail returned status %d", resp.StatusCode)
	}
}

func (w *DeliverPayoutWorker) failWithdrawal(ctx context.Context, withdrawalID uuid.UUID, reason string) error {
	if err := w.withdrawals.MarkFailed(ctx, withdrawalID, reason); err != nil {
		return fmt.Errorf("payout failed (%s) AND failed to mark withdrawal: %w", reason, err)
	}
	return nil
}
