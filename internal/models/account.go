package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is an authenticated API consumer. Address is the marketplace
// identity the account acts as when calling engine operations.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Address      Address   `json:"address"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey is a hashed bearer credential tied to an account.
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Label     string    `json:"label"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
