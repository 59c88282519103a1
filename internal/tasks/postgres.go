package tasks

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agoramesh/backend/internal/models"
)

// PostgresStore persists task records. Ids come from task_id_seq, which
// EnsureSeed advances to the configured starting value on boot.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSeed advances task_id_seq so the next task id is at least
// startID. It never moves the sequence backward. Runs once at boot,
// before the worker pool starts allocating ids.
func (s *PostgresStore) EnsureSeed(ctx context.Context, startID int64) error {
	if startID <= 1 {
		return nil
	}
	var (
		last   int64
		called bool
	)
	if err := s.pool.QueryRow(ctx, `SELECT last_value, is_called FROM task_id_seq`).Scan(&last, &called); err != nil {
		return err
	}
	target, advance := seedTarget(last, called, startID)
	if !advance {
		return nil
	}
	_, err := s.pool.Exec(ctx, `SELECT setval('task_id_seq', $1, true)`, target)
	return err
}

// seedTarget computes the setval position (with is_called=true) that
// makes the next nextval return startID. A fresh sequence reports
// last_value without having served it yet, so its effective next id is
// last_value itself, not last_value+1. advance is false when the
// sequence is already at or past startID.
func seedTarget(lastValue int64, isCalled bool, startID int64) (target int64, advance bool) {
	next := lastValue
	if isCalled {
		next = lastValue + 1
	}
	if next >= startID {
		return 0, false
	}
	return startID - 1, true
}

func (s *PostgresStore) NextTaskID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('task_id_seq')`).Scan(&id)
	return id, err
}

func (s *PostgresStore) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var t models.Task
	err := s.pool.QueryRow(ctx, `
		SELECT id, prompt, issuer, assignee, proposal_id, amount, asset, status, result, rating
		FROM tasks WHERE id = $1
	`, id).Scan(&t.ID, &t.Prompt, &t.Issuer, &t.Assignee, &t.ProposalID, &t.Amount, &t.Asset, &t.Status, &t.Result, &t.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) PutTask(ctx context.Context, t *models.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, prompt, issuer, assignee, proposal_id, amount, asset, status, result, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = $8, result = $9, rating = $10, updated_at = now()
	`, t.ID, t.Prompt, t.Issuer, t.Assignee, t.ProposalID, t.Amount, t.Asset, t.Status, t.Result, t.Rating)
	return err
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer models.Address) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, prompt, issuer, assignee, proposal_id, amount, asset, status, result, rating
		FROM tasks WHERE issuer = $1 ORDER BY id
	`, issuer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Prompt, &t.Issuer, &t.Assignee, &t.ProposalID, &t.Amount, &t.Asset, &t.Status, &t.Result, &t.Rating); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
