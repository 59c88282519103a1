package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agoramesh/backend/internal/index"
	"github.com/agoramesh/backend/internal/models"
)

// IndexHandler serves the read-only /v1/index query endpoints backed by
// the mirror tables.
type IndexHandler struct {
	Repo   *index.Repository
	Logger *slog.Logger
}

func NewIndexHandler(repo *index.Repository, logger *slog.Logger) *IndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexHandler{Repo: repo, Logger: logger}
}

// QueryServices handles GET /v1/index/services.
func (h *IndexHandler) QueryServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.Repo.QueryServices(r.Context(), index.ServiceFilter{
		Owner:  models.NormalizeAddress(q.Get("owner")),
		Status: q.Get("status"),
		Limit:  atoi(q.Get("limit")),
		Offset: atoi(q.Get("offset")),
	})
	if err != nil {
		h.Logger.Error("query service index", "error", err)
		http.Error(w, `{"error":"index query failed"}`, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []index.ServiceRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// QueryAgents handles GET /v1/index/agents.
func (h *IndexHandler) QueryAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.Repo.QueryAgents(r.Context(), index.AgentFilter{
		Owner:         models.NormalizeAddress(q.Get("owner")),
		MinReputation: int64(atoi(q.Get("min_reputation"))),
		MaxReputation: int64(atoi(q.Get("max_reputation"))),
		Limit:         atoi(q.Get("limit")),
		Offset:        atoi(q.Get("offset")),
	})
	if err != nil {
		h.Logger.Error("query agent index", "error", err)
		http.Error(w, `{"error":"index query failed"}`, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []index.AgentRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
