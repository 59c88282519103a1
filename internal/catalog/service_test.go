package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/agoramesh/backend/internal/models"
)

const (
	svcOwner1 = models.Address("0xowner1")
	svcOwner2 = models.Address("0xowner2")
	svcAgent1 = models.Address("0xagent1")
	svcAgent2 = models.Address("0xagent2")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(NewMemoryStore(), slog.Default())
}

func mustRegister(t *testing.T, reg *Registry, owner models.Address, agent models.Address) int64 {
	t.Helper()
	id, err := reg.RegisterService(context.Background(), owner, "ipfs://svc", agent)
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	return id
}

func TestRegisterServiceValidation(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	if _, err := reg.RegisterService(ctx, models.ZeroAddress, "ipfs://svc", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("zero owner: got %v, want ErrInvalidInput", err)
	}
	if _, err := reg.RegisterService(ctx, svcOwner1, "", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty metadata: got %v, want ErrInvalidInput", err)
	}
	id := mustRegister(t, reg, svcOwner1, "")
	s, err := reg.GetService(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Status != models.ServiceStatusDraft || s.Version != 1 {
		t.Fatalf("new service = %+v, want DRAFT version 1", s)
	}
}

func TestPublishRequiresAgent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := mustRegister(t, reg, svcOwner1, "")

	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1); !errors.Is(err, models.ErrAgentRequired) {
		t.Fatalf("publish without agent: got %v, want ErrAgentRequired", err)
	}
	if err := reg.AssignAgentToService(ctx, id, svcAgent1, svcOwner1); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	s, _ := reg.GetService(ctx, id)
	if s.Status != models.ServiceStatusPublished {
		t.Fatalf("status = %s, want PUBLISHED", s.Status)
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := mustRegister(t, reg, svcOwner1, svcAgent1)

	// DELETED is not reachable through the status setter.
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusDeleted, svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("set DELETED: got %v, want ErrInvalidTransition", err)
	}
	// DRAFT -> ARCHIVED is allowed, ARCHIVED -> ARCHIVED is not.
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusArchived, svcOwner1); err != nil {
		t.Fatalf("archive from draft: %v", err)
	}
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusArchived, svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("re-archive: got %v, want ErrInvalidTransition", err)
	}
	// ARCHIVED -> PUBLISHED -> ARCHIVED round trip.
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1); err != nil {
		t.Fatalf("publish from archived: %v", err)
	}
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("re-publish: got %v, want ErrInvalidTransition", err)
	}
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusArchived, svcOwner1); err != nil {
		t.Fatalf("archive from published: %v", err)
	}
}

func TestVersionBumps(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := mustRegister(t, reg, svcOwner1, svcAgent1)

	want := int64(1)
	step := func(name string, fn func() error) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		want++
		s, _ := reg.GetService(ctx, id)
		if s.Version != want {
			t.Fatalf("after %s: version = %d, want %d", name, s.Version, want)
		}
	}
	step("update", func() error { return reg.UpdateService(ctx, id, "ipfs://v2", svcOwner1) })
	step("publish", func() error { return reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1) })
	step("transfer", func() error { return reg.TransferServiceOwnership(ctx, id, svcOwner2, svcOwner1) })
	step("reassign", func() error { return reg.AssignAgentToService(ctx, id, svcAgent2, svcOwner2) })
}

func TestDeleteService(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := mustRegister(t, reg, svcOwner1, svcAgent1)

	if err := reg.DeleteService(ctx, id, svcOwner2); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("delete by stranger: got %v, want ErrNotOwner", err)
	}
	if err := reg.DeleteService(ctx, id, svcOwner1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleted records stay readable but reject every mutation.
	s, err := reg.GetService(ctx, id)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if s.Status != models.ServiceStatusDeleted || s.AgentKey != models.ZeroAddress {
		t.Fatalf("deleted record = %+v", s)
	}
	if err := reg.DeleteService(ctx, id, svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("double delete: got %v, want ErrInvalidTransition", err)
	}
	if err := reg.UpdateService(ctx, id, "ipfs://v2", svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("update deleted: got %v, want ErrInvalidTransition", err)
	}
	ok, err := reg.Registered(ctx, id)
	if err != nil || ok {
		t.Fatalf("Registered(deleted) = %v, %v; want false, nil", ok, err)
	}
}

func TestGetServiceNeverAllocated(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.GetService(context.Background(), 42); !errors.Is(err, models.ErrServiceNotFound) {
		t.Fatalf("got %v, want ErrServiceNotFound", err)
	}
}

func TestUnassignAgent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := mustRegister(t, reg, svcOwner1, svcAgent1)
	if err := reg.SetServiceStatus(ctx, id, models.ServiceStatusPublished, svcOwner1); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The landing status after unassignment cannot be PUBLISHED.
	if err := reg.UnassignAgentFromService(ctx, id, models.ServiceStatusPublished, svcOwner1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("unassign to PUBLISHED: got %v, want ErrInvalidTransition", err)
	}
	if err := reg.UnassignAgentFromService(ctx, id, models.ServiceStatusArchived, svcOwner1); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	s, _ := reg.GetService(ctx, id)
	if s.AgentKey != models.ZeroAddress || s.Status != models.ServiceStatusArchived {
		t.Fatalf("after unassign: %+v", s)
	}
}

func TestOwnerAndAgentIndexes(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id1 := mustRegister(t, reg, svcOwner1, svcAgent1)
	id2 := mustRegister(t, reg, svcOwner1, svcAgent1)

	ids := func(list []models.Service) []int64 {
		out := make([]int64, len(list))
		for i, s := range list {
			out[i] = s.ID
		}
		return out
	}

	byOwner, err := reg.GetServicesByOwner(ctx, svcOwner1)
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	if len(byOwner) != 2 {
		t.Fatalf("owner list = %v, want [%d %d]", ids(byOwner), id1, id2)
	}

	// Reassigning moves the service between agent buckets.
	if err := reg.AssignAgentToService(ctx, id2, svcAgent2, svcOwner1); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	byAgent1, _ := reg.GetServicesByAgent(ctx, svcAgent1)
	byAgent2, _ := reg.GetServicesByAgent(ctx, svcAgent2)
	if len(byAgent1) != 1 || byAgent1[0].ID != id1 {
		t.Fatalf("agent1 list = %v, want [%d]", ids(byAgent1), id1)
	}
	if len(byAgent2) != 1 || byAgent2[0].ID != id2 {
		t.Fatalf("agent2 list = %v, want [%d]", ids(byAgent2), id2)
	}

	// Ownership transfer moves the service between owner buckets.
	if err := reg.TransferServiceOwnership(ctx, id1, svcOwner2, svcOwner1); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	byOwner1, _ := reg.GetServicesByOwner(ctx, svcOwner1)
	byOwner2, _ := reg.GetServicesByOwner(ctx, svcOwner2)
	if len(byOwner1) != 1 || byOwner1[0].ID != id2 {
		t.Fatalf("owner1 list = %v, want [%d]", ids(byOwner1), id2)
	}
	if len(byOwner2) != 1 || byOwner2[0].ID != id1 {
		t.Fatalf("owner2 list = %v, want [%d]", ids(byOwner2), id1)
	}

	if _, err := reg.GetServicesByOwner(ctx, models.ZeroAddress); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("zero owner query: got %v, want ErrInvalidInput", err)
	}
}
