package agents

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/agoramesh/backend/internal/models"
)

// stubCatalog implements ServiceChecker with a fixed set of live ids.
type stubCatalog struct {
	live map[int64]bool
}

func (s *stubCatalog) Registered(_ context.Context, id int64) (bool, error) {
	return s.live[id], nil
}

// stubLegacy implements LegacySource over a map.
type stubLegacy struct {
	records map[models.Address]*LegacyAgent
}

func (s *stubLegacy) Lookup(_ context.Context, key models.Address) (*LegacyAgent, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

const (
	taskRegAddr = models.Address("0xtaskregistry")
	adminAddr   = models.Address("0xadmin")

	agentKey = models.Address("0xagent1")
	owner1   = models.Address("0xowner1")
	owner2   = models.Address("0xowner2")
)

func newTestRegistry(t *testing.T, legacy LegacySource) *Registry {
	t.Helper()
	return NewRegistry(NewMemoryStore(), &stubCatalog{live: map[int64]bool{1: true, 2: true}}, Config{
		TaskRegistry: taskRegAddr,
		Admin:        adminAddr,
		Legacy:       legacy,
	}, slog.Default())
}

func TestRegisterAgentDuplicate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "ipfs://meta", owner1); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "ipfs://meta", owner2); !errors.Is(err, models.ErrAlreadyRegistered) {
		t.Fatalf("second register: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRemoveThenReregisterNewOwner(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "ipfs://meta", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RemoveAgent(ctx, agentKey, owner2); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("remove by stranger: got %v, want ErrNotOwner", err)
	}
	if err := reg.RemoveAgent(ctx, agentKey, owner1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := reg.GetAgentData(ctx, agentKey); !errors.Is(err, models.ErrNotRegistered) {
		t.Fatalf("get after remove: got %v, want ErrNotRegistered", err)
	}
	a, err := reg.RegisterAgent(ctx, agentKey, "worker2", "ipfs://meta2", owner2)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if a.Owner != owner2 {
		t.Fatalf("re-registered owner = %s, want %s", a.Owner, owner2)
	}
	if a.Reputation != 0 || a.TotalRatings != 0 {
		t.Fatalf("re-registered record carries old reputation: %+v", a)
	}
}

func TestSetAgentDataPreservesReputation(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "ipfs://a", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.AddRating(ctx, agentKey, 80, taskRegAddr); err != nil {
		t.Fatalf("rating: %v", err)
	}
	if err := reg.SetAgentData(ctx, agentKey, "renamed", "ipfs://b", owner1); err != nil {
		t.Fatalf("set data: %v", err)
	}
	a, err := reg.GetAgentData(ctx, agentKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Name != "renamed" || a.MetadataURI != "ipfs://b" {
		t.Fatalf("data not updated: %+v", a)
	}
	if a.Reputation != 80 || a.TotalRatings != 1 {
		t.Fatalf("reputation not preserved: %+v", a)
	}
}

func TestAddProposalRequiresLiveService(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.AddProposal(ctx, agentKey, 99, 100, models.AssetNative, owner1); !errors.Is(err, models.ErrServiceNotFound) {
		t.Fatalf("unknown service: got %v, want ErrServiceNotFound", err)
	}
	if _, err := reg.AddProposal(ctx, agentKey, 1, 100, models.AssetNative, owner2); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("stranger caller: got %v, want ErrNotOwner", err)
	}
	p, err := reg.AddProposal(ctx, agentKey, 1, 100, models.AssetNative, owner1)
	if err != nil {
		t.Fatalf("add proposal: %v", err)
	}
	if !p.Active || p.Price != 100 || p.ServiceID != 1 {
		t.Fatalf("unexpected proposal: %+v", p)
	}
}

func TestProposalIDsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	var last int64
	for i := 0; i < 5; i++ {
		p, err := reg.AddProposal(ctx, agentKey, 1, int64(10+i), models.AssetNative, owner1)
		if err != nil {
			t.Fatalf("add proposal %d: %v", i, err)
		}
		if p.ID <= last {
			t.Fatalf("proposal id %d not greater than %d", p.ID, last)
		}
		last = p.ID
		// Removals must not free ids for reuse.
		if err := reg.RemoveProposal(ctx, agentKey, p.ID, owner1); err != nil {
			t.Fatalf("remove proposal %d: %v", p.ID, err)
		}
	}
}

func TestRemoveProposalNotOwned(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	other := models.Address("0xagent2")
	if _, err := reg.RegisterAgent(ctx, agentKey, "a", "", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.RegisterAgent(ctx, other, "b", "", owner2); err != nil {
		t.Fatalf("register other: %v", err)
	}
	p, err := reg.AddProposal(ctx, other, 1, 5, models.AssetNative, owner2)
	if err != nil {
		t.Fatalf("add proposal: %v", err)
	}
	// The id exists but belongs to a different agent.
	if err := reg.RemoveProposal(ctx, agentKey, p.ID, owner1); !errors.Is(err, models.ErrProposalNotFound) {
		t.Fatalf("foreign proposal: got %v, want ErrProposalNotFound", err)
	}
	if err := reg.RemoveProposal(ctx, agentKey, 9999, owner1); !errors.Is(err, models.ErrProposalNotFound) {
		t.Fatalf("missing proposal: got %v, want ErrProposalNotFound", err)
	}
}

func TestRegisterAgentWithProposal(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, _, err := reg.RegisterAgentWithProposal(ctx, agentKey, "worker", "", 99, 100, models.AssetNative, owner1); !errors.Is(err, models.ErrServiceNotFound) {
		t.Fatalf("unknown service: got %v, want ErrServiceNotFound", err)
	}
	if _, err := reg.GetAgentData(ctx, agentKey); !errors.Is(err, models.ErrNotRegistered) {
		t.Fatal("agent must not be registered when the proposal reference is invalid")
	}
	a, p, err := reg.RegisterAgentWithProposal(ctx, agentKey, "worker", "", 1, 100, "tok-42", owner1)
	if err != nil {
		t.Fatalf("register with proposal: %v", err)
	}
	if a.Key != agentKey || p.AgentKey != agentKey || p.Asset != "tok-42" {
		t.Fatalf("unexpected result: agent=%+v proposal=%+v", a, p)
	}
}

// flakyStore injects a failure into proposal writes.
type flakyStore struct {
	*MemoryStore
	putProposalErr error
}

func (s *flakyStore) PutProposal(ctx context.Context, p *models.Proposal) error {
	if s.putProposalErr != nil {
		return s.putProposalErr
	}
	return s.MemoryStore.PutProposal(ctx, p)
}

func TestRegisterAgentWithProposalAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), putProposalErr: errors.New("write failed")}
	reg := NewRegistry(store, &stubCatalog{live: map[int64]bool{1: true}}, Config{
		TaskRegistry: taskRegAddr,
		Admin:        adminAddr,
	}, slog.Default())

	if _, _, err := reg.RegisterAgentWithProposal(ctx, agentKey, "worker", "", 1, 100, models.AssetNative, owner1); err == nil {
		t.Fatal("combined call succeeded despite failed proposal write")
	}
	// The agent write must have been rolled back with the proposal.
	if _, err := reg.GetAgentData(ctx, agentKey); !errors.Is(err, models.ErrNotRegistered) {
		t.Fatalf("get after failed call: got %v, want ErrNotRegistered", err)
	}

	// Once the store recovers, the same call goes through cleanly.
	store.putProposalErr = nil
	a, p, err := reg.RegisterAgentWithProposal(ctx, agentKey, "worker", "", 1, 100, models.AssetNative, owner1)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if a.Key != agentKey || !p.Active {
		t.Fatalf("unexpected result: agent=%+v proposal=%+v", a, p)
	}
}

func TestAddRatingRunningMean(t *testing.T) {
	cases := []struct {
		name    string
		ratings []int64
		want    int64
	}{
		{"exact mean", []int64{80, 90, 100}, 90},
		{"two ratings", []int64{0, 100}, 50},
		{"truncation", []int64{1, 2}, 1}, // (1+2)/2 truncates to 1
		{"single", []int64{77}, 77},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			reg := newTestRegistry(t, nil)
			if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "", owner1); err != nil {
				t.Fatalf("register: %v", err)
			}
			for _, r := range tc.ratings {
				if err := reg.AddRating(ctx, agentKey, r, taskRegAddr); err != nil {
					t.Fatalf("rating %d: %v", r, err)
				}
			}
			got, err := reg.GetReputation(ctx, agentKey)
			if err != nil {
				t.Fatalf("get reputation: %v", err)
			}
			if got != tc.want {
				t.Fatalf("reputation = %d, want %d", got, tc.want)
			}
			a, _ := reg.GetAgentData(ctx, agentKey)
			if a.TotalRatings != int64(len(tc.ratings)) {
				t.Fatalf("total ratings = %d, want %d", a.TotalRatings, len(tc.ratings))
			}
		})
	}
}

func TestAddRatingAuthorization(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	if _, err := reg.RegisterAgent(ctx, agentKey, "worker", "", owner1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.AddRating(ctx, agentKey, 50, owner1); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("owner caller: got %v, want ErrNotOwner", err)
	}
	if err := reg.AddRating(ctx, agentKey, 101, taskRegAddr); !errors.Is(err, models.ErrInvalidRating) {
		t.Fatalf("rating 101: got %v, want ErrInvalidRating", err)
	}
	if err := reg.AddRating(ctx, agentKey, -1, taskRegAddr); !errors.Is(err, models.ErrInvalidRating) {
		t.Fatalf("rating -1: got %v, want ErrInvalidRating", err)
	}
}

func TestMigrateAgent(t *testing.T) {
	ctx := context.Background()
	legacy := &stubLegacy{records: map[models.Address]*LegacyAgent{
		agentKey: {Key: agentKey, Name: "old worker", MetadataURI: "ipfs://old", Owner: owner1, Reputation: 73, TotalRatings: 12},
	}}
	reg := newTestRegistry(t, legacy)

	if _, err := reg.MigrateAgent(ctx, "0xunknown", owner1); !errors.Is(err, models.ErrNotRegistered) {
		t.Fatalf("missing legacy record: got %v, want ErrNotRegistered", err)
	}
	if _, err := reg.MigrateAgent(ctx, agentKey, owner2); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("stranger caller: got %v, want ErrNotOwner", err)
	}

	a, err := reg.MigrateAgent(ctx, agentKey, adminAddr)
	if err != nil {
		t.Fatalf("migrate as admin: %v", err)
	}
	if a.Reputation != 73 || a.TotalRatings != 12 || a.Owner != owner1 {
		t.Fatalf("migrated record mismatch: %+v", a)
	}
	if _, err := reg.MigrateAgent(ctx, agentKey, owner1); !errors.Is(err, models.ErrAlreadyRegistered) {
		t.Fatalf("second migrate: got %v, want ErrAlreadyRegistered", err)
	}
}
