package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// APIKeyWithAccount is the auth middleware's lookup result.
type APIKeyWithAccount struct {
	Key     models.APIKey
	Account models.Account
}

type APIKeyRepo struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepo(pool *pgxpool.Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

func (r *APIKeyRepo) Create(ctx context.Context, accountID uuid.UUID, label, keyHash string) (*models.APIKey, error) {
	k := &models.APIKey{AccountID: accountID, Label: label, KeyHash: keyHash}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (account_id, label, key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, accountID, label, keyHash).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (r *APIKeyRepo) FindByKeyHash(ctx context.Context, keyHash string) (*APIKeyWithAccount, error) {
	var out APIKeyWithAccount
	err := r.pool.QueryRow(ctx, `
		SELECT k.id, k.account_id, k.label, k.created_at,
		       a.id, a.email, a.name, a.address, a.created_at
		FROM api_keys k
		JOIN accounts a ON a.id = k.account_id
		WHERE k.key_hash = $1 AND k.revoked_at IS NULL
	`, keyHash).Scan(
		&out.Key.ID, &out.Key.AccountID, &out.Key.Label, &out.Key.CreatedAt,
		&out.Account.ID, &out.Account.Email, &out.Account.Name, &out.Account.Address, &out.Account.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("api key not found")
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *APIKeyRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]models.APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, label, created_at
		FROM api_keys WHERE account_id = $1 AND revoked_at IS NULL
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AccountID, &k.Label, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *APIKeyRepo) Revoke(ctx context.Context, accountID, keyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET revoked_at = now()
		WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL
	`, keyID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("api key not found")
	}
	return nil
}
