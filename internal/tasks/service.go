package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agoramesh/backend/internal/ledger"
	"github.com/agoramesh/backend/internal/models"
)

// AgentRegistry is the slice of the agent registry the task registry
// depends on: proposal resolution and the restricted rating push.
type AgentRegistry interface {
	GetProposal(ctx context.Context, id int64) (*models.Proposal, error)
	AddRating(ctx context.Context, key models.Address, rating int64, caller models.Address) error
}

// Registry owns task records and the escrow attached to them. It is
// constructed with its own component identity, which it presents to the
// agent registry when forwarding ratings.
//
// Mutations are serialized by a registry-wide mutex. Escrow calls pair
// with the status write: the status is written first and restored if
// the transfer fails, and the ledger's HELD guard ensures the held
// amount moves at most once.
type Registry struct {
	mu       sync.Mutex
	store    Store
	agents   AgentRegistry
	ledger   ledger.Service
	identity models.Address
	log      *slog.Logger
}

func NewRegistry(store Store, agents AgentRegistry, lgr ledger.Service, identity models.Address, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: store, agents: agents, ledger: lgr, identity: identity, log: log}
}

// Identity returns the component identity this registry rates with.
func (r *Registry) Identity() models.Address { return r.identity }

// CreateTask resolves the proposal, captures the payment into escrow,
// and creates the task in ASSIGNED with the proposal's agent as
// assignee. The payment must equal the proposal's price in both amount
// and asset.
func (r *Registry) CreateTask(ctx context.Context, issuer models.Address, proposalID int64, prompt string, payment models.Payment) (*models.Task, error) {
	if issuer.IsZero() {
		return nil, models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prop, err := r.agents.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if prop == nil || !prop.Active {
		return nil, models.ErrProposalNotFound
	}
	if payment.Amount != prop.Price || payment.Asset != prop.Asset {
		return nil, models.ErrInvalidPayment
	}

	id, err := r.store.NextTaskID(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.Hold(ctx, id, issuer, prop.Asset, prop.Price); err != nil {
		return nil, err
	}
	t := &models.Task{
		ID:         id,
		Prompt:     prompt,
		Issuer:     issuer,
		Assignee:   prop.AgentKey,
		ProposalID: proposalID,
		Amount:     prop.Price,
		Asset:      prop.Asset,
		Status:     models.TaskStatusAssigned,
	}
	if err := r.store.PutTask(ctx, t); err != nil {
		// The hold was placed but the record write failed; give the
		// funds back so nothing is stranded in escrow.
		if rerr := r.ledger.Refund(ctx, id); rerr != nil {
			r.log.Error("escrow refund after failed task write", "task_id", id, "error", rerr)
		}
		return nil, err
	}
	r.log.Info("task created", "task_id", id, "issuer", issuer, "assignee", t.Assignee, "amount", t.Amount, "asset", t.Asset)
	return t, nil
}

// CompleteTask transitions ASSIGNED -> COMPLETED, stores the result,
// and releases the full escrowed amount to the assignee. Assignee-only.
func (r *Registry) CompleteTask(ctx context.Context, taskID int64, result string, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.assigned(ctx, taskID)
	if err != nil {
		return err
	}
	if caller != t.Assignee {
		return models.ErrNotOwner
	}
	prev := *t
	t.Status = models.TaskStatusCompleted
	t.Result = result
	if err := r.store.PutTask(ctx, t); err != nil {
		return err
	}
	if err := r.ledger.Release(ctx, taskID, t.Assignee); err != nil {
		if perr := r.store.PutTask(ctx, &prev); perr != nil {
			r.log.Error("status rollback after failed release", "task_id", taskID, "error", perr)
		}
		return err
	}
	r.log.Info("task completed", "task_id", taskID, "assignee", t.Assignee, "amount", t.Amount)
	return nil
}

// CancelTask transitions ASSIGNED -> CANCELED and refunds the full
// escrowed amount to the issuer. Issuer-only.
func (r *Registry) CancelTask(ctx context.Context, taskID int64, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.assigned(ctx, taskID)
	if err != nil {
		return err
	}
	if caller != t.Issuer {
		return models.ErrNotOwner
	}
	prev := *t
	t.Status = models.TaskStatusCanceled
	if err := r.store.PutTask(ctx, t); err != nil {
		return err
	}
	if err := r.ledger.Refund(ctx, taskID); err != nil {
		if perr := r.store.PutTask(ctx, &prev); perr != nil {
			r.log.Error("status rollback after failed refund", "task_id", taskID, "error", perr)
		}
		return err
	}
	r.log.Info("task canceled", "task_id", taskID, "issuer", t.Issuer, "amount", t.Amount)
	return nil
}

// RateTask records the issuer's rating of a completed task, exactly
// once, and forwards it to the agent registry under this registry's
// component identity.
func (r *Registry) RateTask(ctx context.Context, taskID int64, rating int64, caller models.Address) error {
	if rating < 0 || rating > 100 {
		return models.ErrInvalidRating
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.TaskStatusCompleted {
		return models.ErrInvalidTransition
	}
	if caller != t.Issuer {
		return models.ErrNotOwner
	}
	if t.Rating != 0 {
		return models.ErrAlreadyRated
	}
	prev := *t
	t.Rating = rating
	if err := r.store.PutTask(ctx, t); err != nil {
		return err
	}
	if err := r.agents.AddRating(ctx, t.Assignee, rating, r.identity); err != nil {
		if perr := r.store.PutTask(ctx, &prev); perr != nil {
			r.log.Error("rating rollback after failed push", "task_id", taskID, "error", perr)
		}
		return err
	}
	r.log.Info("task rated", "task_id", taskID, "assignee", t.Assignee, "rating", rating)
	return nil
}

// GetTask returns a task by id.
func (r *Registry) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	return r.get(ctx, taskID)
}

// GetTasksByIssuer lists tasks created by the issuer.
func (r *Registry) GetTasksByIssuer(ctx context.Context, issuer models.Address) ([]models.Task, error) {
	return r.store.ListByIssuer(ctx, issuer)
}

func (r *Registry) get(ctx context.Context, taskID int64) (*models.Task, error) {
	t, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, models.ErrTaskNotFound
	}
	return t, nil
}

func (r *Registry) assigned(ctx context.Context, taskID int64) (*models.Task, error) {
	t, err := r.get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskStatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	return t, nil
}
