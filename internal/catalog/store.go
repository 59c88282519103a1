package catalog

import (
	"context"

	"github.com/agoramesh/backend/internal/models"
)

// Store is the persistence contract for service records. Lookups return
// (nil, nil) when the id was never allocated. PutService upserts the
// record and keeps the owner and agent reverse indices in step with it.
type Store interface {
	NextServiceID(ctx context.Context) (int64, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	PutService(ctx context.Context, svc *models.Service) error
	ListByOwner(ctx context.Context, owner models.Address) ([]models.Service, error)
	ListByAgent(ctx context.Context, agent models.Address) ([]models.Service, error)
}
