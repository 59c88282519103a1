package agents

import (
	"context"

	"github.com/agoramesh/backend/internal/models"
)

// Store is the persistence contract for agent and proposal records.
// Lookups return (nil, nil) when no record exists. Proposal ids come
// from a registry-wide sequence that never goes backward or reuses
// a value.
type Store interface {
	GetAgent(ctx context.Context, key models.Address) (*models.Agent, error)
	PutAgent(ctx context.Context, a *models.Agent) error

	NextProposalID(ctx context.Context) (int64, error)
	GetProposal(ctx context.Context, id int64) (*models.Proposal, error)
	PutProposal(ctx context.Context, p *models.Proposal) error
	ListProposalsByAgent(ctx context.Context, key models.Address) ([]models.Proposal, error)
}
