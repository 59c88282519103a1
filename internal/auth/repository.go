package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, email, passwordHash, name string, addr models.Address) (*models.Account, error) {
	acc := &models.Account{Email: email, Name: name, Address: addr}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, name, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, email, passwordHash, name, addr).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, string, error) {
	var acc models.Account
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, address, password_hash, created_at
		FROM accounts WHERE email = $1
	`, email).Scan(&acc.ID, &acc.Email, &acc.Name, &acc.Address, &hash, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &acc, hash, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var acc models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, address, created_at
		FROM accounts WHERE id = $1
	`, id).Scan(&acc.ID, &acc.Email, &acc.Name, &acc.Address, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
