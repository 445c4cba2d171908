package app

import (
	"net/http"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/config"
	"user-onboarding/internal/handlers"
	"user-onboarding/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(h *handlers.Handlers, cfg *config.Config, reg *prometheus.Registry, logger logging.Logger) *mux.Router {
	router := mux.NewRouter()

	// Correlation ids must exist before the request is logged
	router.Use(middleware.CorrelationID)
	router.Use(middleware.Logging(logger))

	v1 := router.PathPrefix("/v1").Subrouter()

	// Health check and metrics (no auth required)
	v1.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)

	// HR webhook: API key first, then the body signature
	webhook := v1.PathPrefix("/hr").Subrouter()
	webhook.Use(middleware.APIKey(cfg.APIKey, logger))
	webhook.Use(middleware.Signature(cfg.WebhookSecret, logger))
	webhook.HandleFunc("/webhook", h.HandleHRWebhook).Methods(http.MethodPost)

	v1.HandleFunc("/users/{id}", h.GetUser).Methods(http.MethodGet)
	v1.HandleFunc("/dead-letters/{correlation_id}", h.GetDeadLetter).Methods(http.MethodGet)

	return router
}
