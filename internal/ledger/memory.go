package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/agoramesh/backend/internal/models"
)

type balanceKey struct {
	Addr  models.Address
	Asset models.Asset
}

// Memory is an in-process ledger. A single mutex serializes movements
// so every call applies fully or not at all.
type Memory struct {
	mu       sync.Mutex
	balances map[balanceKey]int64
	holds    map[int64]*Hold
	txlog    []Transaction
}

var _ Service = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]int64),
		holds:    make(map[int64]*Hold),
	}
}

func (m *Memory) Deposit(_ context.Context, addr models.Address, asset models.Asset, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := balanceKey{addr, asset}
	m.balances[k] += amount
	m.record(TxDeposit, 0, models.ZeroAddress, addr, asset, amount)
	return m.balances[k], nil
}

func (m *Memory) Balance(_ context.Context, addr models.Address, asset models.Asset) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{addr, asset}], nil
}

func (m *Memory) Hold(_ context.Context, taskID int64, issuer models.Address, asset models.Asset, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := balanceKey{issuer, asset}
	if m.balances[k] < amount {
		return ErrInsufficientFunds
	}
	m.balances[k] -= amount
	m.balances[balanceKey{models.EscrowAddress, asset}] += amount
	m.holds[taskID] = &Hold{TaskID: taskID, Issuer: issuer, Asset: asset, Amount: amount, Status: HoldHeld}
	m.record(TxEscrowHold, taskID, issuer, models.EscrowAddress, asset, amount)
	return nil
}

func (m *Memory) Release(_ context.Context, taskID int64, assignee models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[taskID]
	if !ok || h.Status != HoldHeld {
		return ErrNoHold
	}
	m.balances[balanceKey{models.EscrowAddress, h.Asset}] -= h.Amount
	m.balances[balanceKey{assignee, h.Asset}] += h.Amount
	h.Status = HoldReleased
	m.record(TxEscrowRelease, taskID, models.EscrowAddress, assignee, h.Asset, h.Amount)
	return nil
}

func (m *Memory) Refund(_ context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[taskID]
	if !ok || h.Status != HoldHeld {
		return ErrNoHold
	}
	m.balances[balanceKey{models.EscrowAddress, h.Asset}] -= h.Amount
	m.balances[balanceKey{h.Issuer, h.Asset}] += h.Amount
	h.Status = HoldRefunded
	m.record(TxEscrowRefund, taskID, models.EscrowAddress, h.Issuer, h.Asset, h.Amount)
	return nil
}

func (m *Memory) GetHold(_ context.Context, taskID int64) (*Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[taskID]
	if !ok {
		return nil, nil
	}
	cp := *h
	return &cp, nil
}

// Transactions returns a copy of the movement log.
func (m *Memory) Transactions(_ context.Context) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.txlog))
	copy(out, m.txlog)
	return out, nil
}

func (m *Memory) record(txType string, taskID int64, debit, credit models.Address, asset models.Asset, amount int64) {
	m.txlog = append(m.txlog, Transaction{
		ID: uuid.New(), Type: txType, TaskID: taskID,
		Debit: debit, Credit: credit, Asset: asset, Amount: amount,
	})
}
