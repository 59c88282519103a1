package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agoramesh/backend/internal/catalog"
	"github.com/agoramesh/backend/internal/index"
	"github.com/agoramesh/backend/internal/middleware"
	"github.com/agoramesh/backend/internal/models"
)

// ServiceHandler serves the /v1/services endpoints.
type ServiceHandler struct {
	Registry *catalog.Registry
	Emitter  index.Emitter
	Cache    *gocache.Cache
	Logger   *slog.Logger
}

func NewServiceHandler(registry *catalog.Registry, emitter index.Emitter, logger *slog.Logger) *ServiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceHandler{
		Registry: registry,
		Emitter:  emitter,
		Cache:    gocache.New(30*time.Second, time.Minute),
		Logger:   logger,
	}
}

type registerServiceRequest struct {
	MetadataURI string `json:"metadata_uri"`
	AgentKey    string `json:"agent_key,omitempty"`
}

// RegisterService handles POST /v1/services.
func (h *ServiceHandler) RegisterService(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req registerServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	id, err := h.Registry.RegisterService(r.Context(), caller, req.MetadataURI, models.NormalizeAddress(req.AgentKey))
	if err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusCreated, map[string]int64{"service_id": id})
}

// GetService handles GET /v1/services/{id}. Responses are cached for a
// short TTL; every write to the id drops the entry, and the embedded
// version counter lets clients detect staleness regardless.
func (h *ServiceHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	cacheKey := cacheKeyService(id)
	if cached, found := h.Cache.Get(cacheKey); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	svc, err := h.Registry.GetService(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.Cache.SetDefault(cacheKey, svc)
	writeJSON(w, http.StatusOK, svc)
}

// ListServices handles GET /v1/services?owner=...|agent=...
func (h *ServiceHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		list []models.Service
		err  error
	)
	switch {
	case q.Get("owner") != "":
		list, err = h.Registry.GetServicesByOwner(r.Context(), models.NormalizeAddress(q.Get("owner")))
	case q.Get("agent") != "":
		list, err = h.Registry.GetServicesByAgent(r.Context(), models.NormalizeAddress(q.Get("agent")))
	default:
		http.Error(w, `{"error":"owner or agent query parameter required"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Service{}
	}
	writeJSON(w, http.StatusOK, list)
}

type updateServiceRequest struct {
	MetadataURI string `json:"metadata_uri"`
}

// UpdateService handles PUT /v1/services/{id}.
func (h *ServiceHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req updateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.UpdateService(r.Context(), id, req.MetadataURI, caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles POST /v1/services/{id}/status.
func (h *ServiceHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.SetServiceStatus(r.Context(), id, req.Status, caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// DeleteService handles DELETE /v1/services/{id}.
func (h *ServiceHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.DeleteService(r.Context(), id, caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type assignAgentRequest struct {
	AgentKey string `json:"agent_key"`
}

// AssignAgent handles POST /v1/services/{id}/agent.
func (h *ServiceHandler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req assignAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.AssignAgentToService(r.Context(), id, models.NormalizeAddress(req.AgentKey), caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

type unassignAgentRequest struct {
	TargetStatus string `json:"target_status"`
}

// UnassignAgent handles DELETE /v1/services/{id}/agent. The body names
// the status to land in (DRAFT or ARCHIVED).
func (h *ServiceHandler) UnassignAgent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req unassignAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.UnassignAgentFromService(r.Context(), id, req.TargetStatus, caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unassigned"})
}

type transferRequest struct {
	NewOwner string `json:"new_owner"`
}

// TransferOwnership handles POST /v1/services/{id}/transfer.
func (h *ServiceHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.TransferServiceOwnership(r.Context(), id, models.NormalizeAddress(req.NewOwner), caller); err != nil {
		writeError(w, err)
		return
	}
	h.afterWrite(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (h *ServiceHandler) afterWrite(r *http.Request, id int64) {
	h.Cache.Delete(cacheKeyService(id))
	emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityService, ServiceID: id})
}

func cacheKeyService(id int64) string {
	return "service:" + strconv.FormatInt(id, 10)
}
