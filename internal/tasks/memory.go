package tasks

import (
	"context"
	"sort"
	"sync"

	"github.com/agoramesh/backend/internal/models"
)

// MemoryStore keeps task records in mutex-guarded maps. startID seeds
// the id counter: the first task gets startID.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	tasks    map[int64]models.Task
	byIssuer map[models.Address]map[int64]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(startID int64) *MemoryStore {
	if startID < 1 {
		startID = 1
	}
	return &MemoryStore{
		nextID:   startID - 1,
		tasks:    make(map[int64]models.Task),
		byIssuer: make(map[models.Address]map[int64]struct{}),
	}
}

func (s *MemoryStore) NextTaskID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	out := t
	return &out, nil
}

func (s *MemoryStore) PutTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = *t
	if s.byIssuer[t.Issuer] == nil {
		s.byIssuer[t.Issuer] = make(map[int64]struct{})
	}
	s.byIssuer[t.Issuer][t.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) ListByIssuer(_ context.Context, issuer models.Address) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byIssuer[issuer]
	out := make([]models.Task, 0, len(ids))
	for id := range ids {
		out = append(out, s.tasks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
