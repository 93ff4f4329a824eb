package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory Store mock. Lets us test the real ledger service logic
// without a database; the mutex stands in for row-level atomicity.
// ---------------------------------------------------------------------------

type mockStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	entries  []*models.CoinEntry
}

func newMockStore() *mockStore {
	return &mockStore{balances: make(map[uuid.UUID]int)}
}

func (m *mockStore) DeductCoins(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	if b < amount {
		return 0, ErrInsufficientFunds
	}
	m.balances[userID] = b - amount
	return b - amount, nil
}

func (m *mockStore) AddCoins(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	m.balances[userID] = b + amount
	return b + amount, nil
}

func (m *mockStore) InsertEntry(_ context.Context, _ pgx.Tx, e *models.CoinEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockStore) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

func (m *mockStore) entryCount(entryType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.EntryType == entryType {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Debit / Credit basics
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	user := uuid.New()
	store := newMockStore()
	store.balances[user] = 50
	svc := NewService(store)
	ctx := context.Background()

	got, err := svc.Debit(ctx, nil, user, 30, Entry{Type: models.CoinEntryTaskEscrow})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got != 20 {
		t.Errorf("new balance: got %d, want 20", got)
	}
	if n := store.entryCount(models.CoinEntryTaskEscrow); n != 1 {
		t.Errorf("task_escrow entries: got %d, want 1", n)
	}

	// Overdraw fails and changes nothing.
	if _, err := svc.Debit(ctx, nil, user, 21, Entry{Type: models.CoinEntryTaskEscrow}); err != ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
	if got := store.balance(user); got != 20 {
		t.Errorf("balance after failed debit: got %d, want 20", got)
	}
}

func TestDebitInvalidAmount(t *testing.T) {
	user := uuid.New()
	store := newMockStore()
	store.balances[user] = 50
	svc := NewService(store)
	ctx := context.Background()

	for _, amount := range []int{0, -5} {
		if _, err := svc.Debit(ctx, nil, user, amount, Entry{Type: models.CoinEntryTaskEscrow}); err != ErrInvalidAmount {
			t.Errorf("Debit(%d): expected ErrInvalidAmount, got: %v", amount, err)
		}
		if _, err := svc.Credit(ctx, nil, user, amount, Entry{Type: models.CoinEntryTaskEarning}); err != ErrInvalidAmount {
			t.Errorf("Credit(%d): expected ErrInvalidAmount, got: %v", amount, err)
		}
	}
	if len(store.entries) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(store.entries))
	}
}

func TestCredit(t *testing.T) {
	user := uuid.New()
	store := newMockStore()
	store.balances[user] = 5
	svc := NewService(store)

	got, err := svc.Credit(context.Background(), nil, user, 10, Entry{Type: models.CoinEntryTaskEarning})
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if got != 15 {
		t.Errorf("new balance: got %d, want 15", got)
	}
	if n := store.entryCount(models.CoinEntryTaskEarning); n != 1 {
		t.Errorf("task_earning entries: got %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Concurrency: racing debits against one balance never overdraw and
// never lose an update.
// ---------------------------------------------------------------------------

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	user := uuid.New()
	store := newMockStore()
	store.balances[user] = 100
	svc := NewService(store)
	ctx := context.Background()

	const attempts = 30 // 30 debits of 10 against a balance of 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(ctx, nil, user, 10, Entry{Type: models.CoinEntryWithdrawalHold}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("successful debits: got %d, want 10", succeeded)
	}
	if got := store.balance(user); got != 0 {
		t.Errorf("final balance: got %d, want 0", got)
	}
	if n := store.entryCount(models.CoinEntryWithdrawalHold); n != 10 {
		t.Errorf("ledger entries: got %d, want 10", n)
	}
}
