package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agoramesh/backend/internal/ledger"
	"github.com/agoramesh/backend/internal/middleware"
	"github.com/agoramesh/backend/internal/models"
)

// LedgerHandler serves balance reads and the admin-gated deposit used
// to fund accounts.
type LedgerHandler struct {
	Ledger ledger.Service
	Admin  models.Address
	Logger *slog.Logger
}

func NewLedgerHandler(lgr ledger.Service, admin models.Address, logger *slog.Logger) *LedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandler{Ledger: lgr, Admin: admin, Logger: logger}
}

type depositRequest struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Amount  int64  `json:"amount"`
}

// Deposit handles POST /v1/ledger/deposit. Admin-only.
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() || caller != h.Admin {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"amount must be > 0"}`, http.StatusBadRequest)
		return
	}
	asset := models.Asset(req.Asset)
	if asset == "" {
		asset = models.AssetNative
	}
	balance, err := h.Ledger.Deposit(r.Context(), models.NormalizeAddress(req.Address), asset, req.Amount)
	if err != nil {
		h.Logger.Error("deposit", "error", err)
		http.Error(w, `{"error":"deposit failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// Balance handles GET /v1/ledger/balance?asset=... for the caller's
// own account.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromCtx(r.Context())
	if caller.IsZero() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	asset := models.Asset(r.URL.Query().Get("asset"))
	if asset == "" {
		asset = models.AssetNative
	}
	balance, err := h.Ledger.Balance(r.Context(), caller, asset)
	if err != nil {
		h.Logger.Error("balance", "error", err)
		http.Error(w, `{"error":"balance lookup failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": caller, "asset": asset, "balance": balance})
}
