package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agoramesh/backend/internal/models"
)

// Registry owns service records and enforces the status machine
//
//	DRAFT -> PUBLISHED -> ARCHIVED -> DELETED
//
// DELETED is terminal and only reachable through DeleteService. Every
// successful mutation bumps the record version. Mutating operations are
// serialized by a registry-wide mutex; reads go straight to the store.
type Registry struct {
	mu    sync.Mutex
	store Store
	log   *slog.Logger
}

func NewRegistry(store Store, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: store, log: log}
}

// RegisterService creates a record in DRAFT with version 1 and returns
// the assigned id. agentKey may be zero for an unassigned service.
func (r *Registry) RegisterService(ctx context.Context, owner models.Address, metadataURI string, agentKey models.Address) (int64, error) {
	if owner.IsZero() || metadataURI == "" {
		return 0, models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.store.NextServiceID(ctx)
	if err != nil {
		return 0, err
	}
	svc := &models.Service{
		ID:          id,
		Owner:       owner,
		AgentKey:    agentKey,
		MetadataURI: metadataURI,
		Status:      models.ServiceStatusDraft,
		Version:     1,
	}
	if err := r.store.PutService(ctx, svc); err != nil {
		return 0, err
	}
	r.log.Info("service registered", "service_id", id, "owner", owner)
	return id, nil
}

// UpdateService replaces the metadata reference. Owner-only; rejected
// on DELETED services.
func (r *Registry) UpdateService(ctx context.Context, id int64, metadataURI string, caller models.Address) error {
	if metadataURI == "" {
		return models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	svc.MetadataURI = metadataURI
	svc.Version++
	return r.store.PutService(ctx, svc)
}

// SetServiceStatus applies the generic transition table: to PUBLISHED
// only from DRAFT/ARCHIVED with an agent assigned, to ARCHIVED only
// from PUBLISHED/DRAFT. Any other target, including DELETED, is an
// invalid transition here.
func (r *Registry) SetServiceStatus(ctx context.Context, id int64, newStatus string, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	switch newStatus {
	case models.ServiceStatusPublished:
		if svc.Status != models.ServiceStatusDraft && svc.Status != models.ServiceStatusArchived {
			return models.ErrInvalidTransition
		}
		if svc.AgentKey.IsZero() {
			return models.ErrAgentRequired
		}
	case models.ServiceStatusArchived:
		if svc.Status != models.ServiceStatusPublished && svc.Status != models.ServiceStatusDraft {
			return models.ErrInvalidTransition
		}
	default:
		return models.ErrInvalidTransition
	}
	svc.Status = newStatus
	svc.Version++
	if err := r.store.PutService(ctx, svc); err != nil {
		return err
	}
	r.log.Info("service status changed", "service_id", id, "status", newStatus, "version", svc.Version)
	return nil
}

// DeleteService is the dedicated soft delete. It fails if the record is
// already DELETED and clears the agent assignment so the record drops
// out of the agent index.
func (r *Registry) DeleteService(ctx context.Context, id int64, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	svc.Status = models.ServiceStatusDeleted
	svc.AgentKey = models.ZeroAddress
	svc.Version++
	if err := r.store.PutService(ctx, svc); err != nil {
		return err
	}
	r.log.Info("service deleted", "service_id", id)
	return nil
}

// AssignAgentToService sets the assigned agent. Reassignment moves the
// service from the previous agent's index to the new one.
func (r *Registry) AssignAgentToService(ctx context.Context, id int64, agentKey models.Address, caller models.Address) error {
	if agentKey.IsZero() {
		return models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	svc.AgentKey = agentKey
	svc.Version++
	return r.store.PutService(ctx, svc)
}

// UnassignAgentFromService clears the assignment. A PUBLISHED service
// cannot stay published without an agent, so the caller must supply the
// status to land in: DRAFT or ARCHIVED.
func (r *Registry) UnassignAgentFromService(ctx context.Context, id int64, targetStatus string, caller models.Address) error {
	if targetStatus != models.ServiceStatusDraft && targetStatus != models.ServiceStatusArchived {
		return models.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	svc.AgentKey = models.ZeroAddress
	svc.Status = targetStatus
	svc.Version++
	return r.store.PutService(ctx, svc)
}

// TransferServiceOwnership hands the record to a new owner and moves it
// between owner indices.
func (r *Registry) TransferServiceOwnership(ctx context.Context, id int64, newOwner models.Address, caller models.Address) error {
	if newOwner.IsZero() {
		return models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, err := r.mutable(ctx, id, caller)
	if err != nil {
		return err
	}
	svc.Owner = newOwner
	svc.Version++
	if err := r.store.PutService(ctx, svc); err != nil {
		return err
	}
	r.log.Info("service ownership transferred", "service_id", id, "new_owner", newOwner)
	return nil
}

// GetService returns the record, DELETED included, or ErrServiceNotFound
// for an id that was never allocated.
func (r *Registry) GetService(ctx context.Context, id int64) (*models.Service, error) {
	svc, err := r.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, models.ErrServiceNotFound
	}
	return svc, nil
}

func (r *Registry) GetServicesByOwner(ctx context.Context, owner models.Address) ([]models.Service, error) {
	if owner.IsZero() {
		return nil, models.ErrInvalidInput
	}
	return r.store.ListByOwner(ctx, owner)
}

func (r *Registry) GetServicesByAgent(ctx context.Context, agent models.Address) ([]models.Service, error) {
	if agent.IsZero() {
		return nil, models.ErrInvalidInput
	}
	return r.store.ListByAgent(ctx, agent)
}

// Registered reports whether id refers to a live (non-deleted) service.
// Used by the agent registry to validate proposal references.
func (r *Registry) Registered(ctx context.Context, id int64) (bool, error) {
	svc, err := r.store.GetService(ctx, id)
	if err != nil {
		return false, err
	}
	return svc != nil && !svc.Deleted(), nil
}

// mutable loads a record and runs the checks shared by every mutation:
// the id exists, the caller owns it, and it is not DELETED (terminal).
func (r *Registry) mutable(ctx context.Context, id int64, caller models.Address) (*models.Service, error) {
	svc, err := r.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, models.ErrServiceNotFound
	}
	if svc.Owner != caller {
		return nil, models.ErrNotOwner
	}
	if svc.Deleted() {
		return nil, models.ErrInvalidTransition
	}
	return svc, nil
}
