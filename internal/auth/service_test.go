package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
)

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
	b := m.balances[userID]
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
	m.entries = append(m.entries, e)
	return nil
}

type memUserStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *memUserStore) Create(_ context.Context, _ pgx.Tx, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[u.Email]; dup {
		return ErrDuplicateEmail
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) List(_ context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUserStore) UpdateRole(_ context.Context, id uuid.UUID, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memUserStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.byID, id)
	return nil
}

func setup() (Service, *memLedgerStore, *memUserStore) {
	ledgerStore := newMemLedgerStore()
	users := newMemUserStore()
	svc := NewService(mockDB{}, users, ledger.NewService(ledgerStore), "test-secret")
	return svc, ledgerStore, users
}

func TestRegisterSignupBonus(t *testing.T) {
	svc, ledgerStore, _ := setup()
	ctx := context.Background()

	buyer, err := svc.Register(ctx, "buyer@example.com", "hunter22", "Buyer", "", models.RoleBuyer)
	if err != nil {
		t.Fatalf("register buyer: %v", err)
	}
	if buyer.CoinBalance != models.SignupBonusBuyer {
		t.Errorf("buyer bonus: got %d, want %d", buyer.CoinBalance, models.SignupBonusBuyer)
	}

	worker, err := svc.Register(ctx, "worker@example.com", "hunter22", "Worker", "", models.RoleWorker)
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	if worker.CoinBalance != models.SignupBonusWorker {
		t.Errorf("worker bonus: got %d, want %d", worker.CoinBalance, models.SignupBonusWorker)
	}

	if len(ledgerStore.entries) != 2 {
		t.Fatalf("ledger entries: got %d, want 2", len(ledgerStore.entries))
	}
	for _, e := range ledgerStore.entries {
		if e.EntryType != models.CoinEntrySignupBonus {
			t.Errorf("entry type: got %s, want signup_bonus", e.EntryType)
		}
	}
}

func TestRegisterAdminRejected(t *testing.T) {
	svc, _, _ := setup()
	if _, err := svc.Register(context.Background(), "a@example.com", "pw", "A", "", models.RoleAdmin); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got: %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@example.com", "pw", "A", "", models.Role("ghost")); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole for unknown role, got: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "dup@example.com", "pw", "First", "", models.RoleWorker); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "pw", "Second", "", models.RoleWorker); err != ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got: %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	u, err := svc.Register(ctx, "w@example.com", "correct horse", "W", "", models.RoleWorker)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, loggedIn, err := svc.Login(ctx, "w@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != u.ID {
		t.Error("login must return the registered user")
	}

	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != u.ID || role != models.RoleWorker {
		t.Errorf("token claims: got %s/%s, want %s/worker", id, role, u.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "w@example.com", "right", "W", "", models.RoleWorker); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "w@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got: %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "right"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got: %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc, _, _ := setup()
	if _, _, err := svc.ValidateToken(context.Background(), "not.a.token"); err == nil {
		t.Error("garbage token must not validate")
	}
}

func TestAdminUserManagement(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	u, err := svc.Register(ctx, "w@example.com", "pw", "W", "", models.RoleWorker)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	promoted, err := svc.UpdateUserRole(ctx, u.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if promoted.Role != models.RoleAdmin {
		t.Errorf("role: got %s, want admin", promoted.Role)
	}
	if _, err := svc.UpdateUserRole(ctx, u.ID, models.Role("ghost")); err != ErrInvalidRole {
		t.Errorf("expected ErrInvalidRole, got: %v", err)
	}

	if err := svc.RemoveUser(ctx, u.ID); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if _, err := svc.Me(ctx, u.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after removal, got: %v", err)
	}
}
