package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/snowdrift/kanban-app/database"
	"github.com/snowdrift/kanban-app/services"
)

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps repository and service errors onto the response
// taxonomy. Anything unexpected becomes a 500 with a generic body; the
// detail is only logged.
func handleError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "username or email already exists")
	case errors.Is(err, database.ErrNoUpdates):
		writeError(w, http.StatusBadRequest, "no updates provided")
	case errors.Is(err, database.ErrOwnerMember):
		writeError(w, http.StatusBadRequest, "owner is already on the board")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
