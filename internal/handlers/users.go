package handlers

import (
	stderrors "errors"
	"net/http"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/storage"

	"github.com/gorilla/mux"
)

// GetUser returns an enriched user by employee id
// @Summary Get an enriched user
// @Tags users
// @Produce json
// @Param id path string true "Employee id"
// @Success 200 {object} models.EnrichedUser
// @Failure 404 {object} errorResponse
// @Router /v1/users/{id} [get]
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, "User store is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found: "+id)
			return
		}
		h.logger.WithContext(r.Context()).Error("Failed to read user", err,
			logging.String("employee", logging.HashID(id)))
		writeError(w, http.StatusServiceUnavailable, "User store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetDeadLetter returns the dead letter recorded for a correlation id
// @Summary Inspect a dead letter
// @Tags dead-letters
// @Produce json
// @Param correlation_id path string true "Correlation id"
// @Success 200 {object} models.DeadLetterRecord
// @Failure 404 {object} errorResponse
// @Router /v1/dead-letters/{correlation_id} [get]
func (h *Handlers) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.deadLetters == nil {
		writeError(w, http.StatusServiceUnavailable, "Dead-letter index is not configured")
		return
	}

	correlationID := mux.Vars(r)["correlation_id"]
	rec, err := h.deadLetters.Lookup(r.Context(), correlationID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Dead letter not found: "+correlationID)
			return
		}
		h.logger.WithContext(r.Context()).Error("Failed to read dead letter", err)
		writeError(w, http.StatusServiceUnavailable, "Dead-letter index unavailable")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
