package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/minihive/backend/internal/ledger"
	"github.com/minihive/backend/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that
	// already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidRole is returned when registering with a role other
	// than worker or buyer. Admins are promoted, never self-registered.
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("user not found")
)

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the user persistence contract.
type Store interface {
	Create(ctx context.Context, tx pgx.Tx, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service interface {
	Register(ctx context.Context, email, password, name, photoURL string, role models.Role) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error)
	RemoveUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	db     TxBeginner
	store  Store
	ledger ledger.Service
	secret []byte
}

func NewService(db TxBeginner, store Store, ledgerSvc ledger.Service, secret string) Service {
	return &service{db: db, store: store, ledger: ledgerSvc, secret: []byte(secret)}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register creates the user and credits the role's signup bonus in
// one transaction, so no user ever exists without their bonus ledger
// entry.
func (s *service) Register(ctx context.Context, email, password, name, photoURL string, role models.Role) (*models.User, error) {
	if role != models.RoleWorker && role != models.RoleBuyer {
		return nil, ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PhotoURL:     photoURL,
		Role:         role,
		PasswordHash: string(hash),
	}
	bonus := models.SignupBonusWorker
	if role == models.RoleBuyer {
		bonus = models.SignupBonusBuyer
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.Create(ctx, tx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	balance, err := s.ledger.Credit(ctx, tx, u.ID, bonus, ledger.Entry{Type: models.CoinEntrySignupBonus})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	u.CoinBalance = balance
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *service) issueToken(userID uuid.UUID, role models.Role) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: string(role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken satisfies middleware.TokenValidator.
func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, models.Role(c.Role), nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.store.GetByID(ctx, userID)
}

func (s *service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.List(ctx)
}

func (s *service) UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.store.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, userID)
}

func (s *service) RemoveUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.Delete(ctx, userID)
}
