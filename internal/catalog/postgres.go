package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// PostgresStore persists service records in the services table. The
// reverse indices are btree indexes on the owner and agent_key columns,
// so they move with the row atomically.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) NextServiceID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('service_id_seq')`).Scan(&id)
	return id, err
}

func (s *PostgresStore) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner, agent_key, metadata_uri, status, version
		FROM services WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Owner, &svc.AgentKey, &svc.MetadataURI, &svc.Status, &svc.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *PostgresStore) PutService(ctx context.Context, svc *models.Service) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, owner, agent_key, metadata_uri, status, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner = $2, agent_key = $3, metadata_uri = $4, status = $5, version = $6,
			updated_at = now()
	`, svc.ID, svc.Owner, svc.AgentKey, svc.MetadataURI, svc.Status, svc.Version)
	return err
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner models.Address) ([]models.Service, error) {
	return s.list(ctx, `
		SELECT id, owner, agent_key, metadata_uri, status, version
		FROM services WHERE owner = $1 ORDER BY id
	`, owner)
}

func (s *PostgresStore) ListByAgent(ctx context.Context, agent models.Address) ([]models.Service, error) {
	return s.list(ctx, `
		SELECT id, owner, agent_key, metadata_uri, status, version
		FROM services WHERE agent_key = $1 ORDER BY id
	`, agent)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]models.Service, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Owner, &svc.AgentKey, &svc.MetadataURI, &svc.Status, &svc.Version); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}
