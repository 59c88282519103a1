package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/agoramesh/backend/internal/models"
)

// MemoryStore keeps service records in mutex-guarded maps. The owner
// and agent indices are updated in the same critical section as the
// primary record so they can never drift.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	services map[int64]models.Service
	byOwner  map[models.Address]map[int64]struct{}
	byAgent  map[models.Address]map[int64]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services: make(map[int64]models.Service),
		byOwner:  make(map[models.Address]map[int64]struct{}),
		byAgent:  make(map[models.Address]map[int64]struct{}),
	}
}

func (s *MemoryStore) NextServiceID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *MemoryStore) GetService(_ context.Context, id int64) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, nil
	}
	out := svc
	return &out, nil
}

func (s *MemoryStore) PutService(_ context.Context, svc *models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.services[svc.ID]; ok {
		if old.Owner != svc.Owner {
			unindex(s.byOwner, old.Owner, svc.ID)
		}
		if old.AgentKey != svc.AgentKey {
			unindex(s.byAgent, old.AgentKey, svc.ID)
		}
	}
	s.services[svc.ID] = *svc
	index(s.byOwner, svc.Owner, svc.ID)
	index(s.byAgent, svc.AgentKey, svc.ID)
	return nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, owner models.Address) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byOwner[owner]), nil
}

func (s *MemoryStore) ListByAgent(_ context.Context, agent models.Address) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byAgent[agent]), nil
}

func (s *MemoryStore) collect(ids map[int64]struct{}) []models.Service {
	out := make([]models.Service, 0, len(ids))
	for id := range ids {
		out = append(out, s.services[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func index(m map[models.Address]map[int64]struct{}, key models.Address, id int64) {
	if key.IsZero() {
		return
	}
	if m[key] == nil {
		m[key] = make(map[int64]struct{})
	}
	m[key][id] = struct{}{}
}

func unindex(m map[models.Address]map[int64]struct{}, key models.Address, id int64) {
	if key.IsZero() {
		return
	}
	delete(m[key], id)
	if len(m[key]) == 0 {
		delete(m, key)
	}
}
