package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agoramesh/backend/internal/agents"
	"github.com/agoramesh/backend/internal/index"
	"github.com/agoramesh/backend/internal/middleware"
	"github.com/agoramesh/backend/internal/models"
)

// AgentHandler serves the /v1/agents and /v1/proposals endpoints.
type AgentHandler struct {
	Registry *agents.Registry
	Emitter  index.Emitter
	Cache    *gocache.Cache
	Logger   *slog.Logger
}

func NewAgentHandler(registry *agents.Registry, emitter index.Emitter, logger *slog.Logger) *AgentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentHandler{
		Registry: registry,
		Emitter:  emitter,
		Cache:    gocache.New(30*time.Second, time.Minute),
		Logger:   logger,
	}
}

type registerAgentRequest struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	MetadataURI string `json:"metadata_uri"`
	// Optional: register with an initial proposal.
	Proposal *proposalRequest `json:"proposal,omitempty"`
}

type proposalRequest struct {
	ServiceID int64  `json:"service_id"`
	Price     int64  `json:"price"`
	Asset     string `json:"asset"`
}

type agentResponse struct {
	Agent    *models.Agent    `json:"agent"`
	Proposal *models.Proposal `json:"proposal,omitempty"`
}

// RegisterAgent handles POST /v1/agents. With a proposal in the body it
// performs the combined register-with-proposal operation.
func (h *AgentHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	key := models.NormalizeAddress(req.Key)

	var resp agentResponse
	var err error
	if req.Proposal != nil {
		resp.Agent, resp.Proposal, err = h.Registry.RegisterAgentWithProposal(
			r.Context(), key, req.Name, req.MetadataURI,
			req.Proposal.ServiceID, req.Proposal.Price, models.Asset(req.Proposal.Asset), caller)
	} else {
		resp.Agent, err = h.Registry.RegisterAgent(r.Context(), key, req.Name, req.MetadataURI, caller)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityAgent, AgentKey: string(key)})
	writeJSON(w, http.StatusCreated, resp)
}

// GetAgent handles GET /v1/agents/{key}.
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	key := models.NormalizeAddress(r.PathValue("key"))
	a, err := h.Registry.GetAgentData(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetReputation handles GET /v1/agents/{key}/reputation. Responses are
// cached for a short TTL and dropped whenever a rating lands.
func (h *AgentHandler) GetReputation(w http.ResponseWriter, r *http.Request) {
	key := models.NormalizeAddress(r.PathValue("key"))
	cacheKey := "reputation:" + string(key)
	if cached, ok := h.Cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	a, err := h.Registry.GetAgentData(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]int64{"reputation": a.Reputation, "total_ratings": a.TotalRatings}
	h.Cache.SetDefault(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

type setAgentDataRequest struct {
	Name        string `json:"name"`
	MetadataURI string `json:"metadata_uri"`
}

// SetAgentData handles PUT /v1/agents/{key}.
func (h *AgentHandler) SetAgentData(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	key := models.NormalizeAddress(r.PathValue("key"))
	var req setAgentDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.SetAgentData(r.Context(), key, req.Name, req.MetadataURI, caller); err != nil {
		writeError(w, err)
		return
	}
	emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityAgent, AgentKey: string(key)})
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveAgent handles DELETE /v1/agents/{key}.
func (h *AgentHandler) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	key := models.NormalizeAddress(r.PathValue("key"))
	if err := h.Registry.RemoveAgent(r.Context(), key, caller); err != nil {
		writeError(w, err)
		return
	}
	h.Cache.Delete("reputation:" + string(key))
	emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityAgent, AgentKey: string(key)})
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// MigrateAgent handles POST /v1/agents/{key}/migrate.
func (h *AgentHandler) MigrateAgent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	key := models.NormalizeAddress(r.PathValue("key"))
	a, err := h.Registry.MigrateAgent(r.Context(), key, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityAgent, AgentKey: string(key)})
	writeJSON(w, http.StatusCreated, a)
}

// AddProposal handles POST /v1/agents/{key}/proposals.
func (h *AgentHandler) AddProposal(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	key := models.NormalizeAddress(r.PathValue("key"))
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	p, err := h.Registry.AddProposal(r.Context(), key, req.ServiceID, req.Price, models.Asset(req.Asset), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RemoveProposal handles DELETE /v1/agents/{key}/proposals/{id}.
func (h *AgentHandler) RemoveProposal(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	key := models.NormalizeAddress(r.PathValue("key"))
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, `{"error":"invalid proposal id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.RemoveProposal(r.Context(), key, id, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListProposals handles GET /v1/agents/{key}/proposals.
func (h *AgentHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	key := models.NormalizeAddress(r.PathValue("key"))
	list, err := h.Registry.GetProposalsByAgent(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetProposal handles GET /v1/proposals/{id}.
func (h *AgentHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid proposal id"}`, http.StatusBadRequest)
		return
	}
	p, err := h.Registry.GetProposal(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
