package agents

import (
	"context"
	"sort"
	"sync"

	"github.com/agoramesh/backend/internal/models"
)

// MemoryStore keeps agents and proposals in mutex-guarded maps.
type MemoryStore struct {
	mu             sync.RWMutex
	agents         map[models.Address]models.Agent
	proposals      map[int64]models.Proposal
	byAgent        map[models.Address]map[int64]struct{}
	nextProposalID int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:    make(map[models.Address]models.Agent),
		proposals: make(map[int64]models.Proposal),
		byAgent:   make(map[models.Address]map[int64]struct{}),
	}
}

func (s *MemoryStore) GetAgent(_ context.Context, key models.Address) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[key]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (s *MemoryStore) PutAgent(_ context.Context, a *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.Key] = *a
	return nil
}

func (s *MemoryStore) NextProposalID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProposalID++
	return s.nextProposalID, nil
}

func (s *MemoryStore) GetProposal(_ context.Context, id int64) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) PutProposal(_ context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = *p
	if s.byAgent[p.AgentKey] == nil {
		s.byAgent[p.AgentKey] = make(map[int64]struct{})
	}
	s.byAgent[p.AgentKey][p.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) ListProposalsByAgent(_ context.Context, key models.Address) ([]models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAgent[key]
	out := make([]models.Proposal, 0, len(ids))
	for id := range ids {
		out = append(out, s.proposals[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
