package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. The ledger service is the real one wired to an
// in-memory store, so escrow accounting is exercised end to end.
// ---------------------------------------------------------------------------

// noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called.
type noopTx struct{ pgx.Tx }

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

type mockDB struct{}

func (mockDB) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type memLedgerStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	entries  []*models.CoinEntry
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{balances: make(map[uuid.UUID]int)}
}

func (m *memLedgerStore) DeductCoins(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	if b < amount {
		return 0, ledger.ErrInsufficientFunds
	}
	m.balances[userID] = b - amount
	return b - amount, nil
}

func (m *memLedgerStore) AddCoins(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *memLedgerStore) InsertEntry(_ context.Context, _ pgx.Tx, e *models.CoinEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLedgerStore) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

func (m *memLedgerStore) entryCount(entryType string) int {
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

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (m *memTaskStore) Insert(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) Get(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) GetForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return m.Get(ctx, id)
}

func (m *memTaskStore) DecrementSlot(_ context.Context, _ pgx.Tx, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return 0, ErrNotFound
	}
	if t.RequiredWorkers <= 0 {
		return 0, ErrTaskFull
	}
	t.RequiredWorkers--
	return t.RequiredWorkers, nil
}

func (m *memTaskStore) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *memTaskStore) UpdateMeta(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) ListOpen(_ context.Context) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.RequiredWorkers > 0 {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTaskStore) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.BuyerID == buyerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestService(ledgerStore *memLedgerStore, taskStore *memTaskStore) Service {
	return NewService(mockDB{}, taskStore, ledger.NewService(ledgerStore))
}

func input(payable, workers int) CreateInput {
	return CreateInput{
		Title:           "Watch my video",
		Detail:          "Watch and like",
		SubmissionInfo:  "screenshot",
		PayableAmount:   payable,
		RequiredWorkers: workers,
		CompletionDate:  time.Now().AddDate(0, 0, 7),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateTaskEscrowsCost(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := ledgerStore.balance(buyer); got != 25 {
		t.Errorf("buyer balance after escrow: got %d, want 25", got)
	}
	if task.RequiredWorkers != 5 {
		t.Errorf("open slots: got %d, want 5", task.RequiredWorkers)
	}
	if n := ledgerStore.entryCount(models.CoinEntryTaskEscrow); n != 1 {
		t.Errorf("task_escrow entries: got %d, want 1", n)
	}
	if _, err := taskStore.Get(ctx, task.ID); err != nil {
		t.Errorf("task not persisted: %v", err)
	}
}

func TestCreateTaskNotEnoughCoins(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 10
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)

	_, err := svc.Create(context.Background(), buyer, input(5, 5))
	if err != ErrNotEnoughCoins {
		t.Fatalf("expected ErrNotEnoughCoins, got: %v", err)
	}
	if got := ledgerStore.balance(buyer); got != 10 {
		t.Errorf("balance after failed create: got %d, want 10", got)
	}
	if tasks, _ := taskStore.ListByBuyer(context.Background(), buyer); len(tasks) != 0 {
		t.Errorf("no task should exist, got %d", len(tasks))
	}
}

// Create followed immediately by Delete returns the buyer's balance
// to its pre-creation value exactly.
func TestCreateDeleteConservation(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, task.ID, buyer); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := ledgerStore.balance(buyer); got != 50 {
		t.Errorf("balance after create+delete: got %d, want 50", got)
	}
	if n := ledgerStore.entryCount(models.CoinEntryEscrowRefund); n != 1 {
		t.Errorf("escrow_refund entries: got %d, want 1", n)
	}
	if _, err := taskStore.Get(ctx, task.ID); err != ErrNotFound {
		t.Errorf("task should be gone, got: %v", err)
	}
}

// Delete refunds only the remaining open slots, not already-paid ones.
func TestDeleteRefundsCurrentSlotCount(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// One slot consumed by an approval.
	if _, err := svc.DecrementSlot(ctx, noopTx{}, task.ID); err != nil {
		t.Fatalf("DecrementSlot: %v", err)
	}
	if err := svc.Delete(ctx, task.ID, buyer); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// 50 - 25 escrow + 4*5 refund = 45.
	if got := ledgerStore.balance(buyer); got != 45 {
		t.Errorf("balance: got %d, want 45", got)
	}
}

func TestDeleteForbiddenForNonOwner(t *testing.T) {
	buyer := uuid.New()
	stranger := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, task.ID, stranger); err != ErrForbidden {
		t.Errorf("expected ErrForbidden, got: %v", err)
	}
	if _, err := taskStore.Get(ctx, task.ID); err != nil {
		t.Errorf("task should survive forbidden delete: %v", err)
	}
}

// AdminRemove bypasses ownership but still refunds the owner.
func TestAdminRemoveRefundsOwner(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.AdminRemove(ctx, task.ID); err != nil {
		t.Fatalf("AdminRemove: %v", err)
	}
	if got := ledgerStore.balance(buyer); got != 50 {
		t.Errorf("balance after admin removal: got %d, want 50", got)
	}
}

// Concurrent decrements of an N-slot task succeed exactly N times.
func TestDecrementSlotSerializes(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 100
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(2, 3))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, full := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DecrementSlot(ctx, noopTx{}, task.ID)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				succeeded++
			case ErrTaskFull:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 || full != attempts-3 {
		t.Errorf("decrements: got %d ok / %d full, want 3 / %d", succeeded, full, attempts-3)
	}
	got, err := taskStore.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RequiredWorkers != 0 {
		t.Errorf("remaining slots: got %d, want 0", got.RequiredWorkers)
	}
}

// A decrement against a deleted task reports ErrNotFound; against an
// exhausted one, ErrTaskFull.
func TestDecrementSlotMissingVsFull(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	if _, err := svc.DecrementSlot(ctx, noopTx{}, uuid.New()); err != ErrNotFound {
		t.Errorf("missing task: expected ErrNotFound, got: %v", err)
	}

	task, err := svc.Create(ctx, buyer, input(5, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.DecrementSlot(ctx, noopTx{}, task.ID); err != nil {
		t.Fatalf("DecrementSlot: %v", err)
	}
	if _, err := svc.DecrementSlot(ctx, noopTx{}, task.ID); err != ErrTaskFull {
		t.Errorf("exhausted task: expected ErrTaskFull, got: %v", err)
	}
}

func TestUpdateMeta(t *testing.T) {
	buyer := uuid.New()
	ledgerStore := newMemLedgerStore()
	ledgerStore.balances[buyer] = 50
	taskStore := newMemTaskStore()
	svc := newTestService(ledgerStore, taskStore)
	ctx := context.Background()

	task, err := svc.Create(ctx, buyer, input(5, 5))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTitle := "Watch my new video"
	updated, err := svc.UpdateMeta(ctx, task.ID, buyer, MetaUpdate{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateMeta: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("title: got %q, want %q", updated.Title, newTitle)
	}
	if updated.PayableAmount != 5 || updated.RequiredWorkers != 5 {
		t.Error("metadata update must not touch economic fields")
	}
	if got := ledgerStore.balance(buyer); got != 25 {
		t.Errorf("metadata update must not touch the ledger: balance %d, want 25", got)
	}

	// Non-owner cannot edit.
	if _, err := svc.UpdateMeta(ctx, task.ID, uuid.New(), MetaUpdate{Title: &newTitle}); err != ErrForbidden {
		t.Errorf("expected ErrForbidden, got: %v", err)
	}
}
