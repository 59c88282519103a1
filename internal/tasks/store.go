package tasks

import (
	"context"

	"github.com/agoramesh/backend/internal/models"
)

// Store is the persistence contract for task records. Task ids
// auto-increment from a configurable seed so numbering can continue
// across deployments.
type Store interface {
	NextTaskID(ctx context.Context) (int64, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	PutTask(ctx context.Context, t *models.Task) error
	ListByIssuer(ctx context.Context, issuer models.Address) ([]models.Task, error)
}
