package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinsPerUSD is the fixed exchange rate for withdrawals.
const CoinsPerUSD = 20

// MinWithdrawalCoins is the smallest withdrawable amount (10 USD).
const MinWithdrawalCoins = 200

// Withdrawal statuses. A request debits the worker's coins up front;
// approved hands the payout to the external rail; failed means the
// rail rejected delivery and the coins were returned.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalFailed   = "failed"
)

// PaymentSystems are the mobile-money rails a worker can cash out to.
var PaymentSystems = map[string]bool{
	"Bkash":  true,
	"Rocket": true,
	"Nagad":  true,
	"Other":  true,
}

type Withdrawal struct {
	ID               uuid.UUID       `json:"id"`
	WorkerID         uuid.UUID       `json:"worker_id"`
	WithdrawalCoin   int             `json:"withdrawal_coin"`
	WithdrawalAmount decimal.Decimal `json:"withdrawal_amount"`
	PaymentSystem    string          `json:"payment_system"`
	AccountNumber    string          `json:"account_number"`
	Status           string          `json:"status"`
	RequestedAt      time.Time       `json:"requested_at"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
}

// USDAmount converts coins to US dollars at the fixed rate.
func USDAmount(coins int) decimal.Decimal {
	return decimal.NewFromInt(int64(coins)).Div(decimal.NewFromInt(CoinsPerUSD))
}
