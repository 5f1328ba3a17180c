package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"soldi/internal/core"
)

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Anything not in
// the taxonomy is a 500 with a generic message so internals do not leak.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Category: "validation"})
	case errors.Is(err, core.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Category: "not_found"})
	case errors.Is(err, core.ErrConflict):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Category: "conflict"})
	default:
		slog.ErrorContext(ctx, "Request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Category: "internal"})
	}
}

func respondBadRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Category: "bad_request"})
}
