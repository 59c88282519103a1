package agents

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// PostgresStore persists agents and proposals. Proposal ids come from
// the proposal_id_seq sequence, which Postgres never rewinds.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetAgent(ctx context.Context, key models.Address) (*models.Agent, error) {
	var a models.Agent
	err := s.pool.QueryRow(ctx, `
		SELECT key, name, metadata_uri, owner, reputation, total_ratings
		FROM agents WHERE key = $1
	`, key).Scan(&a.Key, &a.Name, &a.MetadataURI, &a.Owner, &a.Reputation, &a.TotalRatings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) PutAgent(ctx context.Context, a *models.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (key, name, metadata_uri, owner, reputation, total_ratings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			name = $2, metadata_uri = $3, owner = $4, reputation = $5, total_ratings = $6,
			updated_at = now()
	`, a.Key, a.Name, a.MetadataURI, a.Owner, a.Reputation, a.TotalRatings)
	return err
}

func (s *PostgresStore) NextProposalID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('proposal_id_seq')`).Scan(&id)
	return id, err
}

func (s *PostgresStore) GetProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	var p models.Proposal
	err := s.pool.QueryRow(ctx, `
		SELECT id, agent_key, service_id, price, asset, active
		FROM proposals WHERE id = $1
	`, id).Scan(&p.ID, &p.AgentKey, &p.ServiceID, &p.Price, &p.Asset, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) PutProposal(ctx context.Context, p *models.Proposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proposals (id, agent_key, service_id, price, asset, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			agent_key = $2, service_id = $3, price = $4, asset = $5, active = $6
	`, p.ID, p.AgentKey, p.ServiceID, p.Price, p.Asset, p.Active)
	return err
}

func (s *PostgresStore) ListProposalsByAgent(ctx context.Context, key models.Address) ([]models.Proposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_key, service_id, price, asset, active
		FROM proposals WHERE agent_key = $1 ORDER BY id
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Proposal
	for rows.Next() {
		var p models.Proposal
		if err := rows.Scan(&p.ID, &p.AgentKey, &p.ServiceID, &p.Price, &p.Asset, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
