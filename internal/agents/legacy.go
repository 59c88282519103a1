package agents

import (
	"context"

	"github.com/agoramesh/backend/internal/models"
)

// LegacyAgent is a record read from a prior deployment's registry.
type LegacyAgent struct {
	Key          models.Address
	Name         string
	MetadataURI  string
	Owner        models.Address
	Reputation   int64
	TotalRatings int64
}

// LegacySource is the narrow read contract MigrateAgent pulls from. It
// is decoupled from this registry's write path; implementations wrap
// whatever the previous deployment exposes. Lookup returns (nil, nil)
// when the key has no legacy record.
type LegacySource interface {
	Lookup(ctx context.Context, key models.Address) (*LegacyAgent, error)
}
