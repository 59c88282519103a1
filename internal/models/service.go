package models

// Service status values. DELETED is terminal and only reachable through
// the dedicated delete operation, never through the generic setter.
const (
	ServiceStatusDraft     = "DRAFT"
	ServiceStatusPublished = "PUBLISHED"
	ServiceStatusArchived  = "ARCHIVED"
	ServiceStatusDeleted   = "DELETED"
)

// Service is a catalog entry. Version starts at 1 and is bumped on
// every mutation so downstream caches can detect staleness.
type Service struct {
	ID          int64   `json:"id"`
	Owner       Address `json:"owner"`
	AgentKey    Address `json:"agent_key"` // zero when unassigned
	MetadataURI string  `json:"metadata_uri"`
	Status      string  `json:"status"`
	Version     int64   `json:"version"`
}

func (s *Service) Deleted() bool { return s != nil && s.Status == ServiceStatusDeleted }
