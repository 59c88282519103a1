package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/agoramesh/backend/internal/models"
)

const (
	payer = models.Address("0xpayer")
	payee = models.Address("0xpayee")
)

func TestHoldInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Deposit(ctx, payer, models.AssetNative, 50); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := m.Hold(ctx, 1, payer, models.AssetNative, 51); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if b, _ := m.Balance(ctx, payer, models.AssetNative); b != 50 {
		t.Fatalf("balance = %d, want 50 after failed hold", b)
	}
	if h, _ := m.GetHold(ctx, 1); h != nil {
		t.Fatalf("hold created on failure: %+v", h)
	}
}

func TestHoldReleaseConservation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Deposit(ctx, payer, models.AssetNative, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := m.Hold(ctx, 1, payer, models.AssetNative, 100); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := m.Release(ctx, 1, payee); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Total supply is unchanged; escrow carries nothing.
	var total int64
	for _, addr := range []models.Address{payer, payee, models.EscrowAddress} {
		b, _ := m.Balance(ctx, addr, models.AssetNative)
		total += b
	}
	if total != 100 {
		t.Fatalf("total supply = %d, want 100", total)
	}
	if b, _ := m.Balance(ctx, payee, models.AssetNative); b != 100 {
		t.Fatalf("payee balance = %d, want 100", b)
	}

	h, _ := m.GetHold(ctx, 1)
	if h.Status != HoldReleased {
		t.Fatalf("hold status = %s, want RELEASED", h.Status)
	}
}

func TestSettleExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Deposit(ctx, payer, models.AssetNative, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := m.Hold(ctx, 1, payer, models.AssetNative, 100); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := m.Release(ctx, 1, payee); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Neither a second release nor a refund can move the amount again.
	if err := m.Release(ctx, 1, payee); !errors.Is(err, ErrNoHold) {
		t.Fatalf("double release: got %v, want ErrNoHold", err)
	}
	if err := m.Refund(ctx, 1); !errors.Is(err, ErrNoHold) {
		t.Fatalf("refund after release: got %v, want ErrNoHold", err)
	}
	if b, _ := m.Balance(ctx, payee, models.AssetNative); b != 100 {
		t.Fatalf("payee balance = %d, want 100", b)
	}
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Deposit(ctx, payer, "tok-42", 30); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := m.Hold(ctx, 7, payer, "tok-42", 30); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := m.Refund(ctx, 7); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if b, _ := m.Balance(ctx, payer, "tok-42"); b != 30 {
		t.Fatalf("payer balance = %d, want 30", b)
	}
	if err := m.Refund(ctx, 7); !errors.Is(err, ErrNoHold) {
		t.Fatalf("double refund: got %v, want ErrNoHold", err)
	}
	if err := m.Refund(ctx, 99); !errors.Is(err, ErrNoHold) {
		t.Fatalf("refund unknown task: got %v, want ErrNoHold", err)
	}
}

func TestBalancesPerAsset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.Deposit(ctx, payer, models.AssetNative, 10); err != nil {
		t.Fatalf("deposit native: %v", err)
	}
	if _, err := m.Deposit(ctx, payer, "tok-42", 20); err != nil {
		t.Fatalf("deposit token: %v", err)
	}
	if b, _ := m.Balance(ctx, payer, models.AssetNative); b != 10 {
		t.Fatalf("native balance = %d, want 10", b)
	}
	if b, _ := m.Balance(ctx, payer, "tok-42"); b != 20 {
		t.Fatalf("token balance = %d, want 20", b)
	}

	txs, err := m.Transactions(ctx)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 || txs[0].Type != TxDeposit {
		t.Fatalf("tx log = %+v", txs)
	}
}
