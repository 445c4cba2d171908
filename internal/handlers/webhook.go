package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"user-onboarding/internal/common/errors"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/models"

	"github.com/google/uuid"
)

// maxPayloadSize bounds an HR webhook body
const maxPayloadSize = 1 << 20

// WebhookAcceptedResponse is returned once a request is queued
type WebhookAcceptedResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	EmployeeID    string `json:"employee_id"`
	CorrelationID string `json:"correlation_id"`
}

// HandleHRWebhook queues an HR payload for enrichment
// @Summary Accept an HR employee record
// @Description Validates the payload and queues it for asynchronous enrichment
// @Tags hr
// @Accept json
// @Produce json
// @Param X-Correlation-ID header string false "Correlation id, generated when absent"
// @Success 202 {object} WebhookAcceptedResponse
// @Failure 400 {object} errorResponse "Malformed JSON"
// @Failure 422 {object} errorResponse "Invalid payload"
// @Failure 503 {object} errorResponse "Queue unavailable, retry later"
// @Router /v1/hr/webhook [post]
func (h *Handlers) HandleHRWebhook(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "Enrichment queue is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxPayloadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	var payload models.HRPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON payload")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	correlationID, ok := logging.CorrelationIDFromContext(r.Context())
	if !ok || correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.WithContext(logging.ContextWithCorrelationID(r.Context(), correlationID))

	req, err := h.publisher.Enqueue(r.Context(), payload, correlationID)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrBrokerUnavailable):
		logger.Warn("Enrichment queue unavailable", logging.Err(err))
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "Enrichment queue unavailable, retry later")
		return
	case errors.IsType(err, errors.ErrTypeValidation):
		writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	default:
		logger.Error("Failed to queue enrichment request", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("HR webhook accepted",
		logging.String("employee", logging.HashID(req.EmployeeID)),
		logging.String("email", logging.MaskEmail(payload.Email)),
	)
	writeJSON(w, http.StatusAccepted, WebhookAcceptedResponse{
		Status:        "accepted",
		Message:       "User enrichment queued for background processing",
		EmployeeID:    req.EmployeeID,
		CorrelationID: req.CorrelationID,
	})
}

func validationDetail(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
