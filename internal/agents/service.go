package agents

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agoramesh/backend/internal/models"
)

// ServiceChecker validates that a proposal references a live service.
// Implemented by catalog.Registry.
type ServiceChecker interface {
	Registered(ctx context.Context, serviceID int64) (bool, error)
}

// Config carries the identities and collaborators the registry is
// constructed with.
type Config struct {
	// TaskRegistry is the only caller identity allowed to push ratings.
	TaskRegistry models.Address
	// Admin may migrate any legacy record regardless of its owner.
	Admin models.Address
	// Legacy is the prior deployment's registry; nil disables migration.
	Legacy LegacySource
}

// Registry owns agent and proposal records. A registry-wide mutex
// serializes mutating operations; every operation validates all
// preconditions before its first write.
type Registry struct {
	mu       sync.Mutex
	store    Store
	services ServiceChecker
	cfg      Config
	log      *slog.Logger
}

func NewRegistry(store Store, services ServiceChecker, cfg Config, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{store: store, services: services, cfg: cfg, log: log}
}

// RegisterAgent creates a live record for key. A key that was removed
// may be registered again by any owner.
func (r *Registry) RegisterAgent(ctx context.Context, key models.Address, name, metadataURI string, owner models.Address) (*models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(ctx, key, name, metadataURI, owner)
}

// RegisterAgentWithProposal registers the agent and, in the same
// serialized step, creates its first proposal against serviceID.
func (r *Registry) RegisterAgentWithProposal(ctx context.Context, key models.Address, name, metadataURI string, serviceID, price int64, asset models.Asset, owner models.Address) (*models.Agent, *models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Validate the proposal side before touching the agent record so a
	// bad service reference aborts the whole call.
	if err := r.checkService(ctx, serviceID); err != nil {
		return nil, nil, err
	}
	if price < 0 {
		return nil, nil, models.ErrInvalidInput
	}
	agent, err := r.register(ctx, key, name, metadataURI, owner)
	if err != nil {
		return nil, nil, err
	}
	prop, err := r.createProposal(ctx, key, serviceID, price, asset)
	if err != nil {
		// The agent write landed but the proposal write failed; reset
		// the record so the combined call leaves nothing behind.
		if rerr := r.store.PutAgent(ctx, &models.Agent{Key: key}); rerr != nil {
			r.log.Error("agent reset after failed proposal write", "key", key, "error", rerr)
		}
		return nil, nil, err
	}
	return agent, prop, nil
}

// AddProposal creates a proposal for an existing agent. Owner-only.
func (r *Registry) AddProposal(ctx context.Context, key models.Address, serviceID, price int64, asset models.Asset, caller models.Address) (*models.Proposal, error) {
	if price < 0 {
		return nil, models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ctx, key, caller); err != nil {
		return nil, err
	}
	if err := r.checkService(ctx, serviceID); err != nil {
		return nil, err
	}
	return r.createProposal(ctx, key, serviceID, price, asset)
}

// RemoveProposal soft-deletes a proposal. Owner-only; the id must
// belong to the agent and still be active.
func (r *Registry) RemoveProposal(ctx context.Context, key models.Address, proposalID int64, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ctx, key, caller); err != nil {
		return err
	}
	p, err := r.store.GetProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if p == nil || !p.Active || p.AgentKey != key {
		return models.ErrProposalNotFound
	}
	p.Active = false
	return r.store.PutProposal(ctx, p)
}

// SetAgentData updates name and metadata URI, preserving reputation and
// the ratings count. Owner-only.
func (r *Registry) SetAgentData(ctx context.Context, key models.Address, name, metadataURI string, caller models.Address) error {
	if name == "" {
		return models.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.owned(ctx, key, caller)
	if err != nil {
		return err
	}
	a.Name = name
	a.MetadataURI = metadataURI
	return r.store.PutAgent(ctx, a)
}

// RemoveAgent soft-deletes the record by resetting every field. The key
// is free for re-registration afterward.
func (r *Registry) RemoveAgent(ctx context.Context, key models.Address, caller models.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ctx, key, caller); err != nil {
		return err
	}
	reset := &models.Agent{Key: key}
	if err := r.store.PutAgent(ctx, reset); err != nil {
		return err
	}
	r.log.Info("agent removed", "key", key)
	return nil
}

// AddRating folds one task rating into the agent's running mean. Only
// the task registry identity may call it.
//
// The mean is (reputation*(n-1) + rating) / n with n the post-increment
// count, using Go integer division: truncation toward zero, which for
// these non-negative values is a plain floor.
func (r *Registry) AddRating(ctx context.Context, key models.Address, rating int64, caller models.Address) error {
	if caller != r.cfg.TaskRegistry || r.cfg.TaskRegistry.IsZero() {
		return models.ErrNotOwner
	}
	if rating < 0 || rating > 100 {
		return models.ErrInvalidRating
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.store.GetAgent(ctx, key)
	if err != nil {
		return err
	}
	if !a.Live() {
		return models.ErrNotRegistered
	}
	n := a.TotalRatings + 1
	a.Reputation = (a.Reputation*(n-1) + rating) / n
	a.TotalRatings = n
	if err := r.store.PutAgent(ctx, a); err != nil {
		return err
	}
	r.log.Info("rating applied", "key", key, "rating", rating, "reputation", a.Reputation, "total_ratings", n)
	return nil
}

// MigrateAgent re-creates a record from the legacy source, preserving
// its reputation and ratings count. Restricted to the legacy record's
// owner or the registry admin.
func (r *Registry) MigrateAgent(ctx context.Context, key models.Address, caller models.Address) (*models.Agent, error) {
	if r.cfg.Legacy == nil {
		return nil, models.ErrNotRegistered
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	legacy, err := r.cfg.Legacy.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if legacy == nil {
		return nil, models.ErrNotRegistered
	}
	if caller != legacy.Owner && (caller != r.cfg.Admin || r.cfg.Admin.IsZero()) {
		return nil, models.ErrNotOwner
	}
	existing, err := r.store.GetAgent(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing.Live() {
		return nil, models.ErrAlreadyRegistered
	}
	a := &models.Agent{
		Key:          key,
		Name:         legacy.Name,
		MetadataURI:  legacy.MetadataURI,
		Owner:        legacy.Owner,
		Reputation:   legacy.Reputation,
		TotalRatings: legacy.TotalRatings,
	}
	if err := r.store.PutAgent(ctx, a); err != nil {
		return nil, err
	}
	r.log.Info("agent migrated", "key", key, "owner", a.Owner)
	return a, nil
}

// GetAgentData returns the live record for key.
func (r *Registry) GetAgentData(ctx context.Context, key models.Address) (*models.Agent, error) {
	a, err := r.store.GetAgent(ctx, key)
	if err != nil {
		return nil, err
	}
	if !a.Live() {
		return nil, models.ErrNotRegistered
	}
	return a, nil
}

// GetReputation returns the agent's current reputation score.
func (r *Registry) GetReputation(ctx context.Context, key models.Address) (int64, error) {
	a, err := r.GetAgentData(ctx, key)
	if err != nil {
		return 0, err
	}
	return a.Reputation, nil
}

// GetProposal returns a proposal by id, inactive ones included.
func (r *Registry) GetProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	p, err := r.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, models.ErrProposalNotFound
	}
	return p, nil
}

// GetProposalsByAgent lists every proposal ever issued by the agent.
func (r *Registry) GetProposalsByAgent(ctx context.Context, key models.Address) ([]models.Proposal, error) {
	return r.store.ListProposalsByAgent(ctx, key)
}

// --- internals (callers hold r.mu) ---

func (r *Registry) register(ctx context.Context, key models.Address, name, metadataURI string, owner models.Address) (*models.Agent, error) {
	if key.IsZero() || owner.IsZero() || name == "" {
		return nil, models.ErrInvalidInput
	}
	existing, err := r.store.GetAgent(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing.Live() {
		return nil, models.ErrAlreadyRegistered
	}
	a := &models.Agent{Key: key, Name: name, MetadataURI: metadataURI, Owner: owner}
	if err := r.store.PutAgent(ctx, a); err != nil {
		return nil, err
	}
	r.log.Info("agent registered", "key", key, "owner", owner)
	return a, nil
}

func (r *Registry) createProposal(ctx context.Context, key models.Address, serviceID, price int64, asset models.Asset) (*models.Proposal, error) {
	if asset == "" {
		asset = models.AssetNative
	}
	id, err := r.store.NextProposalID(ctx)
	if err != nil {
		return nil, err
	}
	p := &models.Proposal{
		ID:        id,
		AgentKey:  key,
		ServiceID: serviceID,
		Price:     price,
		Asset:     asset,
		Active:    true,
	}
	if err := r.store.PutProposal(ctx, p); err != nil {
		return nil, err
	}
	r.log.Info("proposal added", "proposal_id", id, "agent", key, "service_id", serviceID, "price", price)
	return p, nil
}

func (r *Registry) checkService(ctx context.Context, serviceID int64) error {
	ok, err := r.services.Registered(ctx, serviceID)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrServiceNotFound
	}
	return nil
}

func (r *Registry) owned(ctx context.Context, key models.Address, caller models.Address) (*models.Agent, error) {
	a, err := r.store.GetAgent(ctx, key)
	if err != nil {
		return nil, err
	}
	if !a.Live() {
		return nil, models.ErrNotRegistered
	}
	if a.Owner != caller {
		return nil, models.ErrNotOwner
	}
	return a, nil
}
