package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agoramesh/backend/internal/auth"
	"github.com/agoramesh/backend/internal/repository"
)

// APIKeyHandler manages API keys. These routes authenticate with a JWT
// (login token), not an API key, so a fresh account can mint its first
// key.
type APIKeyHandler struct {
	AuthSvc auth.Service
	Repo    *repository.APIKeyRepo
	Logger  *slog.Logger
}

func NewAPIKeyHandler(authSvc auth.Service, repo *repository.APIKeyRepo, logger *slog.Logger) *APIKeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyHandler{AuthSvc: authSvc, Repo: repo, Logger: logger}
}

type createKeyRequest struct {
	Label string `json:"label"`
}

// Create handles POST /v1/api-keys. The raw key is returned exactly
// once; only its hash is stored.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromJWT(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	raw := newRawKey()
	sum := sha256.Sum256([]byte(raw))
	k, err := h.Repo.Create(r.Context(), accountID, req.Label, hex.EncodeToString(sum[:]))
	if err != nil {
		h.Logger.Error("create api key", "error", err)
		http.Error(w, `{"error":"create api key failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    k.ID.String(),
		"label": k.Label,
		"key":   raw,
	})
}

// List handles GET /v1/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromJWT(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	keys, err := h.Repo.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.Logger.Error("list api keys", "error", err)
		http.Error(w, `{"error":"list api keys failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// Revoke handles DELETE /v1/api-keys/{id}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountFromJWT(r)
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	keyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid key id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Repo.Revoke(r.Context(), accountID, keyID); err != nil {
		http.Error(w, `{"error":"api key not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *APIKeyHandler) accountFromJWT(r *http.Request) (uuid.UUID, bool) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, false
	}
	id, err := h.AuthSvc.ValidateToken(r.Context(), strings.TrimSpace(authz[len(prefix):]))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func newRawKey() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "am_" + hex.EncodeToString(b)
}
