// Package app wires configuration, storage, Kafka, the directory client
// and the HTTP server into a runnable process.
package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	"user-onboarding/internal/common/logging"
	"user-onboarding/internal/config"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// Mode selects which halves of the service run in this process
type Mode string

const (
	// ModeAPI serves the HTTP endpoints only
	ModeAPI Mode = "api"
	// ModeWorker consumes enrichment requests only
	ModeWorker Mode = "worker"
	// ModeAll runs both in one process
	ModeAll Mode = "all"
)

// ParseMode validates a -mode flag value
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAPI, ModeWorker, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q: want api, worker or all", s)
	}
}

// Serves reports whether the HTTP server runs
func (m Mode) Serves() bool { return m == ModeAPI || m == ModeAll }

// Consumes reports whether the Kafka consumer and workers run
func (m Mode) Consumes() bool { return m == ModeWorker || m == ModeAll }

const serverShutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Set up CPU usage
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Parse command line flags
	modeFlag := flag.String("mode", string(ModeAll), "Process mode: api, worker or all")
	flag.Parse()

	mode, err := ParseMode(*modeFlag)
	if err != nil {
		return err
	}

	// Load and validate configuration
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", err)
		return err
	}

	logger.Info("Starting user onboarding service",
		logging.String("mode", string(mode)),
		logging.Int("cpus", runtime.NumCPU()),
	)

	// Initialize application
	app, err := New(cfg, mode, logger)
	if err != nil {
		logger.Error("Failed to initialize application", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := app.Run(ctx)
	if err := app.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	logger.Info("Service exited")
	return runErr
}

// Run serves HTTP and consumes Kafka, as the mode allows, until ctx is done
// or one of them fails. Call Shutdown afterwards.
func (app *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if app.Mode.Serves() {
		srv := app.NewServer()
		g.Go(func() error {
			app.Logger.Info("HTTP server listening",
				logging.String("addr", srv.Addr()),
				logging.Bool("tls", srv.TLS()),
			)
			return srv.ListenAndServe()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			app.Logger.Info("Shutting down HTTP server")
			return srv.Shutdown(shutdownCtx)
		})
	}

	if app.Mode.Consumes() {
		g.Go(func() error {
			return app.Consumer.Run(gctx, app.Pool)
		})
	}

	return g.Wait()
}
