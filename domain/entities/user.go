package entities

import (
	"errors"
	"time"
)

// User is the balance holder consumed by the game. Only the wallet is used.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Wallet    int64     `db:"wallet"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CanAfford checks if the wallet covers amount
func (u *User) CanAfford(amount int64) bool {
	return u.Wallet >= amount
}

// ValidateDebit checks if an amount can be debited
func (u *User) ValidateDebit(amount int64) error {
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	if !u.CanAfford(amount) {
		return ErrInsufficientBalance
	}
	return nil
}
