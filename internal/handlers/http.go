package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agoramesh/backend/internal/index"
	"github.com/agoramesh/backend/internal/ledger"
	"github.com/agoramesh/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error kind to an HTTP status and surfaces
// the message verbatim.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyRegistered),
		errors.Is(err, models.ErrAlreadyRated):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotRegistered),
		errors.Is(err, models.ErrServiceNotFound),
		errors.Is(err, models.ErrProposalNotFound),
		errors.Is(err, models.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAgentRequired):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidPayment),
		errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidRating),
		errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// pathID parses the int64 path segment registered as {id}.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// emit enqueues a mirror event best-effort: indexing lag is acceptable,
// a failed mutation response is not.
func emit(ctx context.Context, em index.Emitter, log *slog.Logger, args index.MirrorEventArgs) {
	if em == nil {
		return
	}
	if err := em.Emit(ctx, args); err != nil {
		log.Warn("enqueue index mirror event", "entity", args.Entity, "error", err)
	}
}
