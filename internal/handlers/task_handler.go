package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agoramesh/backend/internal/index"
	"github.com/agoramesh/backend/internal/middleware"
	"github.com/agoramesh/backend/internal/models"
	"github.com/agoramesh/backend/internal/tasks"
)

// TaskHandler serves the /v1/tasks endpoints. AgentCache is the agent
// handler's reputation cache; a landed rating drops the assignee's
// entry.
type TaskHandler struct {
	Registry   *tasks.Registry
	Emitter    index.Emitter
	AgentCache *gocache.Cache
	Logger     *slog.Logger
}

func NewTaskHandler(registry *tasks.Registry, emitter index.Emitter, agentCache *gocache.Cache, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{Registry: registry, Emitter: emitter, AgentCache: agentCache, Logger: logger}
}

type createTaskRequest struct {
	ProposalID int64  `json:"proposal_id"`
	Prompt     string `json:"prompt"`
	Payment    struct {
		Asset  string `json:"asset"`
		Amount int64  `json:"amount"`
	} `json:"payment"`
}

// CreateTask handles POST /v1/tasks. The supplied payment must equal
// the proposal's price exactly; on success the amount is escrowed and
// the task returned in ASSIGNED.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	asset := models.Asset(req.Payment.Asset)
	if asset == "" {
		asset = models.AssetNative
	}
	t, err := h.Registry.CreateTask(r.Context(), caller, req.ProposalID, req.Prompt, models.Payment{
		Asset:  asset,
		Amount: req.Payment.Amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTask handles GET /v1/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	t, err := h.Registry.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListTasks handles GET /v1/tasks — the caller's issued tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Registry.GetTasksByIssuer(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

type completeTaskRequest struct {
	Result string `json:"result"`
}

// CompleteTask handles POST /v1/tasks/{id}/complete (assignee-only).
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.CompleteTask(r.Context(), id, req.Result, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.TaskStatusCompleted})
}

// CancelTask handles POST /v1/tasks/{id}/cancel (issuer-only).
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.CancelTask(r.Context(), id, caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.TaskStatusCanceled})
}

type rateTaskRequest struct {
	Rating int64 `json:"rating"`
}

// RateTask handles POST /v1/tasks/{id}/rate (issuer-only, once).
func (h *TaskHandler) RateTask(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	var req rateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Registry.RateTask(r.Context(), id, req.Rating, caller); err != nil {
		writeError(w, err)
		return
	}
	if t, err := h.Registry.GetTask(r.Context(), id); err == nil {
		if h.AgentCache != nil {
			h.AgentCache.Delete("reputation:" + string(t.Assignee))
		}
		emit(r.Context(), h.Emitter, h.Logger, index.MirrorEventArgs{Entity: index.EntityAgent, AgentKey: string(t.Assignee)})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rated"})
}
