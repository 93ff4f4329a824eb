package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin ledger entry types. Amount is always positive; the entry type
// implies the sign (holds and escrows deduct, everything else adds).
const (
	CoinEntrySignupBonus      = "signup_bonus"
	CoinEntryTaskEscrow       = "task_escrow"
	CoinEntryEscrowRefund     = "escrow_refund"
	CoinEntryTaskEarning      = "task_earning"
	CoinEntryWithdrawalHold   = "withdrawal_hold"
	CoinEntryWithdrawalReturn = "withdrawal_return"
	CoinEntryCoinPurchase     = "coin_purchase"
)

type CoinEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	WithdrawalID *uuid.UUID `json:"withdrawal_id,omitempty"`
	PaymentID    *uuid.UUID `json:"payment_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
