package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// ServiceRow is a denormalized service record for filtered queries.
type ServiceRow struct {
	ServiceID   int64          `json:"service_id"`
	Owner       models.Address `json:"owner"`
	AgentKey    models.Address `json:"agent_key"`
	MetadataURI string         `json:"metadata_uri"`
	Status      string         `json:"status"`
	Version     int64          `json:"version"`
}

// AgentRow is a denormalized agent record for filtered queries.
type AgentRow struct {
	Key          models.Address `json:"key"`
	Name         string         `json:"name"`
	Owner        models.Address `json:"owner"`
	Reputation   int64          `json:"reputation"`
	TotalRatings int64          `json:"total_ratings"`
}

// ServiceFilter selects index rows; zero values mean "any".
type ServiceFilter struct {
	Owner  models.Address
	Status string
	Limit  int
	Offset int
}

// AgentFilter selects agent rows by owner and reputation range.
type AgentFilter struct {
	Owner         models.Address
	MinReputation int64
	MaxReputation int64 // 0 means no upper bound
	Limit         int
	Offset        int
}

const defaultLimit = 50

// Repository owns the denormalized index tables the mirror worker
// writes and the query API reads.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) UpsertService(ctx context.Context, row ServiceRow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_index (service_id, owner, agent_key, metadata_uri, status, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (service_id) DO UPDATE SET
			owner = $2, agent_key = $3, metadata_uri = $4, status = $5, version = $6
		WHERE service_index.version < $6
	`, row.ServiceID, row.Owner, row.AgentKey, row.MetadataURI, row.Status, row.Version)
	return err
}

func (r *Repository) UpsertAgent(ctx context.Context, row AgentRow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agent_index (key, name, owner, reputation, total_ratings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			name = $2, owner = $3, reputation = $4, total_ratings = $5
	`, row.Key, row.Name, row.Owner, row.Reputation, row.TotalRatings)
	return err
}

// DeleteAgent drops a mirrored agent row after the record was removed.
func (r *Repository) DeleteAgent(ctx context.Context, key models.Address) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM agent_index WHERE key = $1`, key)
	return err
}

func (r *Repository) QueryServices(ctx context.Context, f ServiceFilter) ([]ServiceRow, error) {
	var (
		where []string
		args  []any
	)
	if !f.Owner.IsZero() {
		args = append(args, f.Owner)
		where = append(where, fmt.Sprintf("owner = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT service_id, owner, agent_key, metadata_uri, status, version FROM service_index`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit(f.Limit), f.Offset)
	q += fmt.Sprintf(" ORDER BY service_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ServiceRow
	for rows.Next() {
		var row ServiceRow
		if err := rows.Scan(&row.ServiceID, &row.Owner, &row.AgentKey, &row.MetadataURI, &row.Status, &row.Version); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) QueryAgents(ctx context.Context, f AgentFilter) ([]AgentRow, error) {
	var (
		where []string
		args  []any
	)
	if !f.Owner.IsZero() {
		args = append(args, f.Owner)
		where = append(where, fmt.Sprintf("owner = $%d", len(args)))
	}
	if f.MinReputation > 0 {
		args = append(args, f.MinReputation)
		where = append(where, fmt.Sprintf("reputation >= $%d", len(args)))
	}
	if f.MaxReputation > 0 {
		args = append(args, f.MaxReputation)
		where = append(where, fmt.Sprintf("reputation <= $%d", len(args)))
	}
	q := `SELECT key, name, owner, reputation, total_ratings FROM agent_index`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit(f.Limit), f.Offset)
	q += fmt.Sprintf(" ORDER BY reputation DESC, key LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgentRow
	for rows.Next() {
		var row AgentRow
		if err := rows.Scan(&row.Key, &row.Name, &row.Owner, &row.Reputation, &row.TotalRatings); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func limit(n int) int {
	if n <= 0 || n > 500 {
		return defaultLimit
	}
	return n
}
