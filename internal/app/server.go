package app

import (
	"net/http"
	"user-onboarding/internal/handlers"
	"user-onboarding/internal/server"
)

// Handler builds the HTTP handler tree served in api and all modes
func (app *App) Handler() http.Handler {
	h := handlers.New(
		app.Requests,
		app.Store,
		app.DeadLetters,
		handlers.HealthInfo{
			Mode:                string(app.Mode),
			StorageBackend:      app.Store.Name(),
			DirectoryConfigured: app.Config.DirectoryConfigured(),
		},
		app.healthChecks(),
		app.Logger,
	)
	return SetupRoutes(h, app.Config, app.Registry, app.Logger)
}

// NewServer creates the HTTP server for the configured port and TLS files
func (app *App) NewServer() *server.Server {
	return server.New(app.Handler(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile)
}
