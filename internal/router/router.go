package router

import (
	"net/http"

	"github.com/agoramesh/backend/internal/auth"
	"github.com/agoramesh/backend/internal/handlers"
	"github.com/agoramesh/backend/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth    *auth.Handler
	APIKeys *handlers.APIKeyHandler
	Agents  *handlers.AgentHandler
	Service *handlers.ServiceHandler
	Tasks   *handlers.TaskHandler
	Ledger  *handlers.LedgerHandler
	Index   *handlers.IndexHandler
}

// New returns the full /v1 route table. Engine-mutating routes sit
// behind API-key auth; auth and api-key management use JWTs; index and
// record reads are public.
func New(h Handlers, apiKeyRepo middleware.APIKeyRepo) http.Handler {
	mux := http.NewServeMux()
	withKey := middleware.APIKeyAuth(apiKeyRepo)

	// Account bootstrap (no auth / JWT auth).
	mux.HandleFunc("POST /v1/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /v1/api-keys", h.APIKeys.Create)
	mux.HandleFunc("GET /v1/api-keys", h.APIKeys.List)
	mux.HandleFunc("DELETE /v1/api-keys/{id}", h.APIKeys.Revoke)

	// Agent registry.
	mux.Handle("POST /v1/agents", withKey(http.HandlerFunc(h.Agents.RegisterAgent)))
	mux.HandleFunc("GET /v1/agents/{key}", h.Agents.GetAgent)
	mux.HandleFunc("GET /v1/agents/{key}/reputation", h.Agents.GetReputation)
	mux.Handle("PUT /v1/agents/{key}", withKey(http.HandlerFunc(h.Agents.SetAgentData)))
	mux.Handle("DELETE /v1/agents/{key}", withKey(http.HandlerFunc(h.Agents.RemoveAgent)))
	mux.Handle("POST /v1/agents/{key}/migrate", withKey(http.HandlerFunc(h.Agents.MigrateAgent)))
	mux.Handle("POST /v1/agents/{key}/proposals", withKey(http.HandlerFunc(h.Agents.AddProposal)))
	mux.HandleFunc("GET /v1/agents/{key}/proposals", h.Agents.ListProposals)
	mux.Handle("DELETE /v1/agents/{key}/proposals/{id}", withKey(http.HandlerFunc(h.Agents.RemoveProposal)))
	mux.HandleFunc("GET /v1/proposals/{id}", h.Agents.GetProposal)

	// Service registry.
	mux.Handle("POST /v1/services", withKey(http.HandlerFunc(h.Service.RegisterService)))
	mux.HandleFunc("GET /v1/services", h.Service.ListServices)
	mux.HandleFunc("GET /v1/services/{id}", h.Service.GetService)
	mux.Handle("PUT /v1/services/{id}", withKey(http.HandlerFunc(h.Service.UpdateService)))
	mux.Handle("DELETE /v1/services/{id}", withKey(http.HandlerFunc(h.Service.DeleteService)))
	mux.Handle("POST /v1/services/{id}/status", withKey(http.HandlerFunc(h.Service.SetStatus)))
	mux.Handle("POST /v1/services/{id}/agent", withKey(http.HandlerFunc(h.Service.AssignAgent)))
	mux.Handle("DELETE /v1/services/{id}/agent", withKey(http.HandlerFunc(h.Service.UnassignAgent)))
	mux.Handle("POST /v1/services/{id}/transfer", withKey(http.HandlerFunc(h.Service.TransferOwnership)))

	// Task registry.
	mux.Handle("POST /v1/tasks", withKey(http.HandlerFunc(h.Tasks.CreateTask)))
	mux.Handle("GET /v1/tasks", withKey(http.HandlerFunc(h.Tasks.ListTasks)))
	mux.HandleFunc("GET /v1/tasks/{id}", h.Tasks.GetTask)
	mux.Handle("POST /v1/tasks/{id}/complete", withKey(http.HandlerFunc(h.Tasks.CompleteTask)))
	mux.Handle("POST /v1/tasks/{id}/cancel", withKey(http.HandlerFunc(h.Tasks.CancelTask)))
	mux.Handle("POST /v1/tasks/{id}/rate", withKey(http.HandlerFunc(h.Tasks.RateTask)))

	// Ledger.
	mux.Handle("POST /v1/ledger/deposit", withKey(http.HandlerFunc(h.Ledger.Deposit)))
	mux.Handle("GET /v1/ledger/balance", withKey(http.HandlerFunc(h.Ledger.Balance)))

	// Index mirror queries.
	mux.HandleFunc("GET /v1/index/services", h.Index.QueryServices)
	mux.HandleFunc("GET /v1/index/agents", h.Index.QueryAgents)

	return mux
}
