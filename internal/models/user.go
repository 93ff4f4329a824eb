package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Authorization is always
// dispatched on these constants, never on free-form strings from
// request payloads.
type Role string

const (
	RoleWorker Role = "worker"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleBuyer || r == RoleAdmin
}

// Signup bonuses credited through the coin ledger on registration.
const (
	SignupBonusWorker = 10
	SignupBonusBuyer  = 50
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PhotoURL     string    `json:"photo_url"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CoinBalance  int       `json:"coin_balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
