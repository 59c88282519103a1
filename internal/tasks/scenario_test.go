package tasks

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/agoramesh/backend/internal/agents"
	"github.com/agoramesh/backend/internal/catalog"
	"github.com/agoramesh/backend/internal/ledger"
	"github.com/agoramesh/backend/internal/models"
)

// TestMarketplaceLifecycle walks the full happy path across all three
// registries wired the way the engine composes them: catalog entry,
// agent with proposal, funded task, completion, payout, and rating.
func TestMarketplaceLifecycle(t *testing.T) {
	ctx := context.Background()
	log := slog.Default()

	var (
		provider = models.Address("0xprovider")
		client   = models.Address("0xclient")
		agentKey = models.Address("0xagent")
	)

	services := catalog.NewRegistry(catalog.NewMemoryStore(), log)
	agentReg := agents.NewRegistry(agents.NewMemoryStore(), services, agents.Config{
		TaskRegistry: registryAddr,
	}, log)
	lgr := ledger.NewMemory()
	taskReg := NewRegistry(NewMemoryStore(1), agentReg, lgr, registryAddr, log)

	// Provider lists a service and registers an agent to serve it.
	svcID, err := services.RegisterService(ctx, provider, "ipfs://translation", "")
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	if _, err := agentReg.RegisterAgent(ctx, agentKey, "translator", "ipfs://agent", provider); err != nil {
		t.Fatalf("register agent: %v", err)
	}
	prop, err := agentReg.AddProposal(ctx, agentKey, svcID, 100, models.AssetNative, provider)
	if err != nil {
		t.Fatalf("add proposal: %v", err)
	}
	if err := services.AssignAgentToService(ctx, svcID, agentKey, provider); err != nil {
		t.Fatalf("assign agent: %v", err)
	}
	if err := services.SetServiceStatus(ctx, svcID, models.ServiceStatusPublished, provider); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Client funds an account and creates a task against the proposal.
	if _, err := lgr.Deposit(ctx, client, models.AssetNative, 250); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	task, err := taskReg.CreateTask(ctx, client, prop.ID, "translate to french", models.Payment{
		Asset:  models.AssetNative,
		Amount: 100,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Assignee != agentKey || task.Status != models.TaskStatusAssigned {
		t.Fatalf("task = %+v", task)
	}
	if b, _ := lgr.Balance(ctx, client, models.AssetNative); b != 150 {
		t.Fatalf("client balance = %d, want 150", b)
	}
	if b, _ := lgr.Balance(ctx, models.EscrowAddress, models.AssetNative); b != 100 {
		t.Fatalf("escrow balance = %d, want 100", b)
	}

	// Agent delivers; the escrowed payment goes to the agent key.
	if err := taskReg.CompleteTask(ctx, task.ID, "bonjour", agentKey); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if b, _ := lgr.Balance(ctx, agentKey, models.AssetNative); b != 100 {
		t.Fatalf("agent balance = %d, want 100", b)
	}
	if b, _ := lgr.Balance(ctx, models.EscrowAddress, models.AssetNative); b != 0 {
		t.Fatalf("escrow balance = %d, want 0", b)
	}

	// Client rates once; the registry forwards it under its identity.
	if err := taskReg.RateTask(ctx, task.ID, 80, client); err != nil {
		t.Fatalf("rate: %v", err)
	}
	rep, err := agentReg.GetReputation(ctx, agentKey)
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if rep != 80 {
		t.Fatalf("reputation = %d, want 80", rep)
	}
	a, _ := agentReg.GetAgentData(ctx, agentKey)
	if a.TotalRatings != 1 {
		t.Fatalf("total ratings = %d, want 1", a.TotalRatings)
	}
	if err := taskReg.RateTask(ctx, task.ID, 90, client); !errors.Is(err, models.ErrAlreadyRated) {
		t.Fatalf("second rating: got %v, want ErrAlreadyRated", err)
	}

	// Direct rating pushes from anyone but the task registry are refused.
	if err := agentReg.AddRating(ctx, agentKey, 100, client); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("direct rating: got %v, want ErrNotOwner", err)
	}
}
