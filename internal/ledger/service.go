package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/agoramesh/backend/internal/models"
)

// ErrInsufficientFunds is returned when the issuer's balance is too low
// for the escrow hold.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoHold is returned when releasing or refunding a task that has no
// hold in HELD status. It makes double release/refund impossible.
var ErrNoHold = errors.New("no held escrow for task")

// Hold status values.
const (
	HoldHeld     = "HELD"
	HoldReleased = "RELEASED"
	HoldRefunded = "REFUNDED"
)

// Transaction types recorded in the double-entry log.
const (
	TxEscrowHold    = "ESCROW_HOLD"
	TxEscrowRelease = "ESCROW_RELEASE"
	TxEscrowRefund  = "ESCROW_REFUND"
	TxDeposit       = "DEPOSIT"
)

// Hold is the escrow record for a single task. Exactly one of release
// or refund ever applies, guarded by the HELD status.
type Hold struct {
	TaskID int64
	Issuer models.Address
	Asset  models.Asset
	Amount int64
	Status string
}

// Transaction is one double-entry movement between two accounts.
type Transaction struct {
	ID     uuid.UUID
	Type   string
	TaskID int64
	Debit  models.Address
	Credit models.Address
	Asset  models.Asset
	Amount int64
}

// Service is the value-transfer interface the task registry escrows
// through. Each call is atomic: it fully applies or fully fails.
type Service interface {
	// Deposit credits an account and returns the new balance. Used by
	// bootstrap/admin funding.
	Deposit(ctx context.Context, addr models.Address, asset models.Asset, amount int64) (int64, error)
	// Balance returns the spendable balance for (addr, asset).
	Balance(ctx context.Context, addr models.Address, asset models.Asset) (int64, error)
	// Hold moves amount from the issuer's balance into escrow for the
	// task. Fails with ErrInsufficientFunds without any movement.
	Hold(ctx context.Context, taskID int64, issuer models.Address, asset models.Asset, amount int64) error
	// Release pays the full held amount to the assignee and marks the
	// hold RELEASED.
	Release(ctx context.Context, taskID int64, assignee models.Address) error
	// Refund returns the full held amount to the issuer and marks the
	// hold REFUNDED.
	Refund(ctx context.Context, taskID int64) error
	// GetHold returns the hold for a task, or nil if none exists.
	GetHold(ctx context.Context, taskID int64) (*Hold, error)
}
