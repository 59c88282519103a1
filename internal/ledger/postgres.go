package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// Postgres is the durable ledger. Balances live in ledger_balances
// keyed by (address, asset); every movement appends to
// ledger_transactions and escrow state lives in escrow_holds.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Service = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (r *Postgres) Deposit(ctx context.Context, addr models.Address, asset models.Asset, amount int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	var balance int64
	row := tx.QueryRow(ctx, `
		INSERT INTO ledger_balances (address, asset, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, asset) DO UPDATE SET balance = ledger_balances.balance + $3
		RETURNING balance
	`, addr, asset, amount)
	if err := row.Scan(&balance); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, TxDeposit, 0, models.ZeroAddress, addr, asset, amount); err != nil {
		return 0, err
	}
	return balance, tx.Commit(ctx)
}

func (r *Postgres) Balance(ctx context.Context, addr models.Address, asset models.Asset) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT balance FROM ledger_balances WHERE address = $1 AND asset = $2
	`, addr, asset).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// Hold runs in one transaction:
// a) deducts the issuer balance via a conditional UPDATE (balance >= amount)
// b) credits the escrow account
// c) inserts an ESCROW_HOLD transaction and an escrow_holds row
func (r *Postgres) Hold(ctx context.Context, taskID int64, issuer models.Address, asset models.Asset, amount int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	result, err := tx.Exec(ctx, `
		UPDATE ledger_balances SET balance = balance - $1
		WHERE address = $2 AND asset = $3 AND balance >= $1
	`, amount, issuer, asset)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	if err := creditBalance(ctx, tx, models.EscrowAddress, asset, amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, TxEscrowHold, taskID, issuer, models.EscrowAddress, asset, amount); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO escrow_holds (task_id, issuer, asset, amount, status)
		VALUES ($1, $2, $3, $4, 'HELD')
	`, taskID, issuer, asset, amount)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Postgres) Release(ctx context.Context, taskID int64, assignee models.Address) error {
	return r.settle(ctx, taskID, HoldReleased, TxEscrowRelease, &assignee)
}

func (r *Postgres) Refund(ctx context.Context, taskID int64) error {
	return r.settle(ctx, taskID, HoldRefunded, TxEscrowRefund, nil)
}

// settle pays out a HELD hold to its beneficiary: the assignee on
// release, the original issuer on refund (beneficiary == nil).
func (r *Postgres) settle(ctx context.Context, taskID int64, newStatus, txType string, beneficiary *models.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	var issuer models.Address
	var asset models.Asset
	var amount int64
	row := tx.QueryRow(ctx, `
		SELECT issuer, asset, amount FROM escrow_holds
		WHERE task_id = $1 AND status = 'HELD'
		FOR UPDATE
	`, taskID)
	if err := row.Scan(&issuer, &asset, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoHold
		}
		return err
	}
	payee := issuer
	if beneficiary != nil {
		payee = *beneficiary
	}
	if _, err := tx.Exec(ctx, `
		UPDATE ledger_balances SET balance = balance - $1 WHERE address = $2 AND asset = $3
	`, amount, models.EscrowAddress, asset); err != nil {
		return err
	}
	if err := creditBalance(ctx, tx, payee, asset, amount); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, txType, taskID, models.EscrowAddress, payee, asset, amount); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE escrow_holds SET status = $1 WHERE task_id = $2
	`, newStatus, taskID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Postgres) GetHold(ctx context.Context, taskID int64) (*Hold, error) {
	var h Hold
	err := r.pool.QueryRow(ctx, `
		SELECT task_id, issuer, asset, amount, status FROM escrow_holds WHERE task_id = $1
	`, taskID).Scan(&h.TaskID, &h.Issuer, &h.Asset, &h.Amount, &h.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func creditBalance(ctx context.Context, tx pgx.Tx, addr models.Address, asset models.Asset, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_balances (address, asset, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, asset) DO UPDATE SET balance = ledger_balances.balance + $3
	`, addr, asset, amount)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txType string, taskID int64, debit, credit models.Address, asset models.Asset, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_transactions (tx_type, task_id, debit_address, credit_address, asset, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txType, taskID, debit, credit, asset, amount)
	return err
}
