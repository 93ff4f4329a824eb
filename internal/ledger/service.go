package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would take a balance
// below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvalidAmount is returned for non-positive debit/credit amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Entry carries the ledger metadata recorded alongside a balance
// mutation.
type Entry struct {
	Type         string
	TaskID       *uuid.UUID
	WithdrawalID *uuid.UUID
	PaymentID    *uuid.UUID
}

// Store is the persistence contract the ledger service needs. The
// balance mutations are single conditional UPDATEs, so each call is
// atomic per user with no transient negative balance observable.
type Store interface {
	// DeductCoins subtracts amount iff coin_balance >= amount and
	// returns the new balance, or ErrInsufficientFunds.
	DeductCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error)
	// AddCoins adds amount and returns the new balance.
	AddCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error
}

// Service is the authoritative coin balance mutator. Every balance
// change in the system goes through Debit or Credit, and every change
// leaves an append-only coin_ledger row behind it.
type Service interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, e Entry) (int, error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, e Entry) (int, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, e Entry) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.store.DeductCoins(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if err := s.record(ctx, tx, userID, amount, newBalance, e); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, e Entry) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.store.AddCoins(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if err := s.record(ctx, tx, userID, amount, newBalance, e); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) record(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, balanceAfter int, e Entry) error {
	return s.store.InsertEntry(ctx, tx, &models.CoinEntry{
		ID:           uuid.New(),
		UserID:       userID,
		TaskID:       e.TaskID,
		WithdrawalID: e.WithdrawalID,
		PaymentID:    e.PaymentID,
		EntryType:    e.Type,
		Amount:       amount,
		BalanceAfter: balanceAfter,
	})
}
